package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOperation retries the operation with a constant backoff policy.
func RetryOperation(ctx context.Context, wait time.Duration, retries int, operation func() error) error {
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(wait),
		uint64(retries),
	)
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// RetryWithExponentialBackoff retries operation with an exponential backoff starting at
// initial until it succeeds, ctx is done, or maxElapsed passes.
func RetryWithExponentialBackoff(ctx context.Context, initial time.Duration, maxElapsed time.Duration, operation func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxElapsedTime = maxElapsed
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
