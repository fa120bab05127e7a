package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/config"
	"github.com/Tafsirchy/thikana/internal/email"
	"github.com/Tafsirchy/thikana/internal/push"
	"github.com/Tafsirchy/thikana/internal/services"
)

// SnapshotFinder loads the engine view of one listing.
type SnapshotFinder interface {
	FindSnapshot(ctx context.Context, listingID string) (*alerts.ListingSnapshot, error)
}

// PublishHandler runs the instant flow.
type PublishHandler interface {
	OnPublish(ctx context.Context, listing alerts.ListingSnapshot) (alerts.Result, error)
}

// DigestRunner runs the periodic flow.
type DigestRunner interface {
	RunDigest(ctx context.Context, frequency alerts.Frequency) (alerts.Result, error)
}

// TokenForgetter drops device tokens that the push provider rejected.
type TokenForgetter interface {
	ForgetPushToken(ctx context.Context, token string) error
}

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	listings             SnapshotFinder
	instant              PublishHandler
	digest               DigestRunner
	emailTemplateService services.IEmailTemplateService
	emailSender          email.Sender
	pushSender           push.Sender
	tokens               TokenForgetter
	logger               *zap.Logger
	now                  func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	listings SnapshotFinder,
	instant PublishHandler,
	digest DigestRunner,
	emailTemplateService services.IEmailTemplateService,
	emailSender email.Sender,
	pushSender push.Sender,
	tokens TokenForgetter,
	logger *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		listings:             listings,
		instant:              instant,
		digest:               digest,
		emailTemplateService: emailTemplateService,
		emailSender:          emailSender,
		pushSender:           pushSender,
		tokens:               tokens,
		logger:               logger.With(zap.String("component", "tasks")),
		now:                  time.Now,
	}
}

// --- Task Handlers ---

// HandleListingPublishedTask fans a published listing out to instant searches.
func (p *TaskProcessor) HandleListingPublishedTask(ctx context.Context, t *asynq.Task) error {
	var payload ListingPublishedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal listing published payload: %v: %w", err, asynq.SkipRetry)
	}

	snapshot, err := p.listings.FindSnapshot(ctx, payload.ListingID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			p.logger.Info("published listing no longer exists", zap.String("listing_id", payload.ListingID))
			return nil
		}
		return fmt.Errorf("load listing %s: %w", payload.ListingID, err)
	}

	res, err := p.instant.OnPublish(ctx, *snapshot)
	if err != nil {
		return err
	}
	p.logger.Info("instant alerts processed",
		zap.String("listing_id", payload.ListingID),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("matched", res.Matched),
		zap.Int("dispatched", res.Dispatched),
		zap.Int("failed", res.Failed),
	)
	return nil
}

// HandleDigestRunTask runs one digest pass.
func (p *TaskProcessor) HandleDigestRunTask(ctx context.Context, t *asynq.Task) error {
	var payload DigestRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal digest payload: %v: %w", err, asynq.SkipRetry)
	}

	if _, err := p.digest.RunDigest(ctx, payload.Frequency); err != nil {
		if errors.Is(err, alerts.ErrUnsupportedFrequency) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// templateData decodes raw into the data type the template expects.
func templateData(templateID string, raw json.RawMessage) (interface{}, error) {
	var data interface{}
	switch templateID {
	case email.TemplateSavedSearchInstant:
		data = &email.InstantData{}
	case email.TemplateSavedSearchDigest:
		data = &email.DigestData{}
	default:
		data = &map[string]interface{}{}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// HandleEmailDeliveryTask renders and sends one templated email.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = email.DefaultLocale
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		p.logger.Error("error getting email template",
			zap.String("template_id", payload.TemplateID), zap.String("locale", locale), zap.Error(err))
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	data, err := templateData(payload.TemplateID, payload.Data)
	if err != nil {
		return fmt.Errorf("decode email data: %v: %w", err, asynq.SkipRetry)
	}
	subject, body, err := email.Render(*tmpl, data)
	if err != nil {
		return fmt.Errorf("render email: %v: %w", err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
	}
	rawMessage := email.BuildMessage(fromAddress, payload.To, subject, body, p.now())

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, rawMessage); err != nil {
		return fmt.Errorf("send email to %s: %w", payload.To, err)
	}
	p.logger.Debug("email delivered", zap.String("template_id", payload.TemplateID))
	return nil
}

// HandlePushDeliveryTask sends one push notification. Tokens the provider
// reports as unregistered are removed from every user.
func (p *TaskProcessor) HandlePushDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload PushTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal push task payload: %v: %w", err, asynq.SkipRetry)
	}

	err := p.pushSender.Send(ctx, payload.Message)
	if errors.Is(err, push.ErrUnregistered) {
		p.logger.Info("dropping unregistered push token", zap.String("owner_id", payload.OwnerID))
		if ferr := p.tokens.ForgetPushToken(ctx, payload.Token); ferr != nil {
			return fmt.Errorf("forget push token: %w", ferr)
		}
		return nil
	}
	return err
}
