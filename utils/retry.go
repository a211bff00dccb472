package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is a fixed-delay retry configuration.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable classifies failures; nil retries every error.
	Retryable func(error) bool
	// OnRetry is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Retry runs operation until it succeeds, fails with a non-retryable error,
// exhausts MaxAttempts or ctx is cancelled. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, operation func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	backoffOperation := func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
	}

	return backoff.RetryNotify(backoffOperation, b, notify)
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, operation func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, policy, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}
