// Package scheduler enqueues periodic digest runs on cron specs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/alerts"
	"github.com/Tafsirchy/thikana/internal/tasks"
)

// Default specs, evaluated in UTC.
const (
	DefaultDailySpec  = "0 7 * * *"
	DefaultWeeklySpec = "0 7 * * 1"
)

// Scheduler wraps robfig/cron and enqueues one alerts:digest task per tick.
type Scheduler struct {
	cron   *cron.Cron
	client tasks.Enqueuer
	specs  map[alerts.Frequency]string
	logger *zap.Logger
}

// New creates a Scheduler. Empty specs fall back to the defaults.
func New(client tasks.Enqueuer, dailySpec, weeklySpec string, logger *zap.Logger) *Scheduler {
	if dailySpec == "" {
		dailySpec = DefaultDailySpec
	}
	if weeklySpec == "" {
		weeklySpec = DefaultWeeklySpec
	}
	logger = logger.With(zap.String("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{s: logger.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{s: logger.Sugar()})),
		),
		client: client,
		specs: map[alerts.Frequency]string{
			alerts.FrequencyDaily:  dailySpec,
			alerts.FrequencyWeekly: weeklySpec,
		},
		logger: logger,
	}
}

// Start registers the digest jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, frequency := range []alerts.Frequency{alerts.FrequencyDaily, alerts.FrequencyWeekly} {
		frequency := frequency
		spec := s.specs[frequency]
		if _, err := s.cron.AddFunc(spec, func() { _ = s.Trigger(ctx, frequency) }); err != nil {
			return fmt.Errorf("cron.AddFunc %s (%q): %w", frequency, spec, err)
		}
	}
	s.cron.Start()
	s.logger.Info("cron started",
		zap.String("daily", s.specs[alerts.FrequencyDaily]),
		zap.String("weekly", s.specs[alerts.FrequencyWeekly]))
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron stopped")
}

// Trigger enqueues a digest run for frequency now. A run already queued for
// the same frequency is not an error.
func (s *Scheduler) Trigger(ctx context.Context, frequency alerts.Frequency) error {
	task, err := tasks.NewDigestRunTask(frequency)
	if err != nil {
		return err
	}
	info, err := tasks.Enqueue(ctx, s.client, task)
	switch {
	case errors.Is(err, tasks.ErrDuplicate):
		s.logger.Info("digest run already queued", zap.String("frequency", string(frequency)))
		return nil
	case err != nil:
		s.logger.Error("failed to enqueue digest run", zap.String("frequency", string(frequency)), zap.Error(err))
		return err
	}
	s.logger.Info("digest run enqueued", zap.String("frequency", string(frequency)), zap.String("task_id", info.ID))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
