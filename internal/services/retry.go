package services

import (
	"context"
	"time"
)

const (
	readRetryAttempts = 3
	readRetryBaseWait = 50 * time.Millisecond
)

// withReadRetry runs an idempotent read a few times with linear backoff.
// Mutations never go through here; a failed write surfaces immediately so the
// caller can decide whether to replay it.
func withReadRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readRetryBaseWait * time.Duration(attempt+1)):
		}
	}
	return err
}
