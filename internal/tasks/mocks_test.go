package tasks_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/models"
	"github.com/Tafsirchy/thikana/internal/push"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, msg push.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockTokenForgetter struct {
	mock.Mock
}

func (m *MockTokenForgetter) ForgetPushToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type MockSnapshotFinder struct {
	mock.Mock
}

func (m *MockSnapshotFinder) FindSnapshot(ctx context.Context, listingID string) (*alerts.ListingSnapshot, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alerts.ListingSnapshot), args.Error(1)
}

type MockPublishHandler struct {
	mock.Mock
}

func (m *MockPublishHandler) OnPublish(ctx context.Context, listing alerts.ListingSnapshot) (alerts.Result, error) {
	args := m.Called(ctx, listing)
	return args.Get(0).(alerts.Result), args.Error(1)
}

type MockDigestRunner struct {
	mock.Mock
}

func (m *MockDigestRunner) RunDigest(ctx context.Context, frequency alerts.Frequency) (alerts.Result, error) {
	args := m.Called(ctx, frequency)
	return args.Get(0).(alerts.Result), args.Error(1)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
