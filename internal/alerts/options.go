package alerts

import "go.uber.org/zap"

const defaultDigestConcurrency = 4

type options struct {
	clock       Clock
	dedup       Deduper
	logger      *zap.Logger
	concurrency int
}

// Option customises a dispatcher or scheduler.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDeduper enables the duplicate-publish guard for instant alerts.
func WithDeduper(d Deduper) Option {
	return func(o *options) {
		o.dedup = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConcurrency bounds how many searches a digest run processes at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:       SystemClock{},
		logger:      zap.NewNop(),
		concurrency: defaultDigestConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
