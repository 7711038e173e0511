package service

import (
	"context"
	"time"

	"tillpoint/internal/apierror"
)

const (
	readAttempts = 3
	readBackoff  = 150 * time.Millisecond
)

// retryRead re-runs a read-only store call on transient failures with a
// short linear backoff. Mutations are never routed through here: retrying
// Open/Close without re-checking state could attempt a duplicate transition.
func retryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt < readAttempts; attempt++ {
		out, err = fn()
		if err == nil || !apierror.IsKind(err, apierror.KindTransient) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return out, apierror.NewTransient("cancelled while retrying read", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * readBackoff):
		}
	}
	return out, err
}
