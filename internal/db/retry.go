package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// Retryable decides whether a failed operation may be attempted again.
type Retryable func(err error) bool

const DefaultMaxRetries = 3

var baseBackoff = 50 * time.Millisecond

// Try executes an operation, retrying transient MongoDB errors up to DefaultMaxRetries times.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsTransientError)
}

// WithRetries executes op up to maxRetries+1 times while retryable(err) holds,
// sleeping with an incremental backoff between attempts. It stops early when
// ctx is done.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable Retryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * baseBackoff):
		}
	}
	return err
}

// IsTransientError reports network errors, timeouts and errors the server
// labels as retryable.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("RetryableWriteError") || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
