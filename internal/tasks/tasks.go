package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/config"
	"github.com/Tafsirchy/thikana/internal/metrics"
	"github.com/Tafsirchy/thikana/internal/push"
)

// TaskType defines the type of a background task.
const (
	TypeListingPublished = "listing:published"
	TypeDigestRun        = "alerts:digest"
	TypeEmailDelivery    = "email:deliver"
	TypePushDelivery     = "push:deliver"
)

// Queues.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// digestUniqueTTL keeps a second digest run of the same frequency out of the
// queue while one is pending or running.
const digestUniqueTTL = time.Hour

// --- Payloads ---

// ListingPublishedPayload is enqueued once per transition into published.
type ListingPublishedPayload struct {
	ListingID string `json:"listing_id"`
}

// DigestRunPayload asks a worker to run one digest pass.
type DigestRunPayload struct {
	Frequency alerts.Frequency `json:"frequency"`
}

// EmailTaskPayload describes one templated email. Data is decoded into the
// template's data type when the task runs.
type EmailTaskPayload struct {
	To         string          `json:"to"`
	TemplateID string          `json:"template_id"`
	Locale     string          `json:"locale,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// PushTaskPayload is a single device notification.
type PushTaskPayload struct {
	push.Message
	OwnerID string `json:"owner_id,omitempty"`
}

// --- Task constructors ---

func newTask(taskType string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data, opts...), nil
}

// NewListingPublishedTask creates the fan-out task for a freshly published listing.
func NewListingPublishedTask(listingID string) (*asynq.Task, error) {
	return newTask(TypeListingPublished, ListingPublishedPayload{ListingID: listingID},
		asynq.Queue(QueueCritical), asynq.MaxRetry(3))
}

// NewDigestRunTask creates a digest task. Only one per frequency can be queued at a time.
func NewDigestRunTask(frequency alerts.Frequency) (*asynq.Task, error) {
	return newTask(TypeDigestRun, DigestRunPayload{Frequency: frequency},
		asynq.Queue(QueueDefault), asynq.MaxRetry(2), asynq.Unique(digestUniqueTTL))
}

// NewEmailDeliveryTask creates a fire-and-forget email task.
func NewEmailDeliveryTask(to, templateID, locale string, data interface{}) (*asynq.Task, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal email data: %w", err)
	}
	payload := EmailTaskPayload{To: to, TemplateID: templateID, Locale: locale, Data: raw}
	return newTask(TypeEmailDelivery, payload,
		asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.TaskID(uuid.NewString()))
}

// NewPushDeliveryTask creates a fire-and-forget push task.
func NewPushDeliveryTask(ownerID string, msg push.Message) (*asynq.Task, error) {
	return newTask(TypePushDelivery, PushTaskPayload{Message: msg, OwnerID: ownerID},
		asynq.Queue(QueueLow), asynq.MaxRetry(0), asynq.TaskID(uuid.NewString()))
}

// --- Task Client (Enqueuing tasks) ---

// Enqueuer is the part of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueue submits task and records the attempt. A duplicate of a unique task
// is reported as ErrDuplicate.
func Enqueue(ctx context.Context, client Enqueuer, task *asynq.Task) (*asynq.TaskInfo, error) {
	info, err := client.EnqueueContext(ctx, task)
	metrics.ObserveEnqueue(task.Type(), err)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, fmt.Errorf("%s: %w", task.Type(), ErrDuplicate)
		}
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}

// ErrDuplicate is returned when an identical task is already queued.
var ErrDuplicate = errors.New("task already queued")

// RedisClientOpt derives asynq connection options from a go-redis client.
func RedisClientOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// NewClient creates an asynq client sharing the Redis settings of rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisClientOpt(rdb))
}

// --- Task Server (Processing tasks) ---

// SetupServer configures an Asynq server and the handler mux. The caller starts it.
func SetupServer(cfg *config.Config, rdb *redis.Client, processor *TaskProcessor, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(
		RedisClientOpt(rdb),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("task failed",
					zap.String("type", task.Type()),
					zap.Int("retried", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
			Logger: newAsynqLogger(logger),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeListingPublished, processor.HandleListingPublishedTask)
	mux.HandleFunc(TypeDigestRun, processor.HandleDigestRunTask)
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypePushDelivery, processor.HandlePushDeliveryTask)
	logger.Info("registered task handlers",
		zap.Strings("types", []string{TypeListingPublished, TypeDigestRun, TypeEmailDelivery, TypePushDelivery}))

	return srv, mux
}

// asynqLogger routes asynq's internal logging through zap.
type asynqLogger struct {
	s *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) asynqLogger {
	return asynqLogger{s: logger.With(zap.String("component", "asynq")).Sugar()}
}

func (l asynqLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l asynqLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l asynqLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l asynqLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l asynqLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }
