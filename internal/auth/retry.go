package auth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds how often a failed store write is attempted again.
// Delays double after every attempt starting at BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   50 * time.Millisecond,
	MaxDelay:    time.Second,
}

// NoRetry performs every write exactly once.
var NoRetry = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// retryable reports whether err is worth another attempt. Duplicate ids and
// missing records are answers, not failures.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDuplicateID), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Do runs fn until it succeeds, fails with a non-retryable error, the attempts
// are used up or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		log.WithFields(log.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("Store write failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
