package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/models"
	"github.com/Tafsirchy/thikana/internal/services"
)

// --- MockListingService ---
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, userID primitive.ObjectID, input services.ListingInput, publish bool) (*models.Listing, error) {
	args := m.Called(ctx, userID, input, publish)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingsByUserID(ctx context.Context, userID primitive.ObjectID) ([]models.Listing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) PublishListing(ctx context.Context, listingID, userID primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, listingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) UnpublishListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	return m.Called(ctx, listingID, userID).Error(0)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	return m.Called(ctx, listingID, userID).Error(0)
}

func (m *MockListingService) GetPublishedSince(ctx context.Context, since time.Time) ([]alerts.ListingSnapshot, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]alerts.ListingSnapshot), args.Error(1)
}

func (m *MockListingService) FindSnapshot(ctx context.Context, listingID string) (*alerts.ListingSnapshot, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alerts.ListingSnapshot), args.Error(1)
}

func (m *MockListingService) SetPublishHook(hook services.PublishHook) {
	m.Called(hook)
}

// --- MockSavedSearchService ---
type MockSavedSearchService struct {
	mock.Mock
}

func (m *MockSavedSearchService) CreateSavedSearch(ctx context.Context, userID primitive.ObjectID, input services.SavedSearchInput) (*models.SavedSearch, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.SavedSearch, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchService) GetSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) (*models.SavedSearch, error) {
	args := m.Called(ctx, searchID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchService) UpdateSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID, input services.SavedSearchInput) (*models.SavedSearch, error) {
	args := m.Called(ctx, searchID, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchService) DeleteSavedSearch(ctx context.Context, searchID, userID primitive.ObjectID) error {
	return m.Called(ctx, searchID, userID).Error(0)
}

func (m *MockSavedSearchService) ListActive(ctx context.Context, frequency alerts.Frequency) ([]alerts.SavedSearch, error) {
	args := m.Called(ctx, frequency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]alerts.SavedSearch), args.Error(1)
}

func (m *MockSavedSearchService) UpdateLastAlertSent(ctx context.Context, searchID string, expected *time.Time, next time.Time) (bool, error) {
	args := m.Called(ctx, searchID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockSavedSearchService) RevertLastAlertSent(ctx context.Context, searchID string, claimed time.Time, previous *time.Time) (bool, error) {
	args := m.Called(ctx, searchID, claimed, previous)
	return args.Bool(0), args.Error(1)
}

// --- MockUserService ---
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	args := m.Called(ctx, name, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateNotificationPreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	return m.Called(ctx, userID, prefs).Error(0)
}

func (m *MockUserService) AddPushToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *MockUserService) RemovePushToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *MockUserService) ForgetPushToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockUserService) SetSuspended(ctx context.Context, userID primitive.ObjectID, suspended bool) error {
	return m.Called(ctx, userID, suspended).Error(0)
}

func (m *MockUserService) GetContact(ctx context.Context, ownerID string) (*alerts.ContactInfo, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alerts.ContactInfo), args.Error(1)
}

// --- Alert flow mocks ---
type MockDigestRunner struct {
	mock.Mock
}

func (m *MockDigestRunner) RunDigest(ctx context.Context, frequency alerts.Frequency) (alerts.Result, error) {
	args := m.Called(ctx, frequency)
	return args.Get(0).(alerts.Result), args.Error(1)
}

type MockPublishHandler struct {
	mock.Mock
}

func (m *MockPublishHandler) OnPublish(ctx context.Context, listing alerts.ListingSnapshot) (alerts.Result, error) {
	args := m.Called(ctx, listing)
	return args.Get(0).(alerts.Result), args.Error(1)
}
