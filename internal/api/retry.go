package api

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// RetryPolicy describes how a remote call is retried: at most MaxAttempts
// attempts, each bounded by Timeout, waiting BaseDelay, 2*BaseDelay, 4*BaseDelay...
// between them.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy returns three attempts, 500ms base delay and a 10s per-attempt timeout
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Timeout:     10 * time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts are
// used up, or ctx is done. The last attempt's error is kept in the chain in
// every case, so callers can still classify it with errors.Is.
func (p RetryPolicy) Do(ctx context.Context, logger *log.Logger, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = log.Default()
	}

	var lastErr error
	attempt := 0
	operation := func() error {
		attempt++
		lastErr = p.attempt(ctx, fn)
		if lastErr != nil && !retryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("timing request failed, retrying", "attempt", attempt, "of", attempts, "wait", wait, "error", err)
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, schedule, notify); err == nil {
		return nil
	}

	switch {
	case !retryable(lastErr):
		return lastErr
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
	}
	return errors.Wrapf(lastErr, "giving up after %d attempts", attempts)
}

// exponential waits BaseDelay, 2*BaseDelay, 4*BaseDelay... without jitter
func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	return b
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(actx)
}
