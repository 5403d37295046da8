package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/service"
)

var (
	// ErrRateLimit indicates that a remote API answered 429.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry metadata. RetryAfter, when set,
// is the wait the remote asked for before the next attempt.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
	Retryable  bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &RetryableError{Err: err, Retryable: false}
}

// RateLimited wraps err as a retryable ErrRateLimit honoring retryAfter.
func RateLimited(err error, retryAfter time.Duration) error {
	return &RetryableError{
		Err:        fmt.Errorf("%w: %w", ErrRateLimit, err),
		RetryAfter: retryAfter,
		Retryable:  true,
	}
}

// ParseRetryAfter reads a Retry-After header value given either as seconds or
// as an HTTP date. Missing, malformed or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func retryDefaults(opts service.RetryOptions) service.RetryOptions {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	return opts
}

// waitFor picks the pause after err. Rate limits wait for the remote's
// Retry-After, or MaxDelay when it sent none; everything else uses backoff.
// No wait exceeds MaxDelay.
func waitFor(err error, backoff time.Duration, opts service.RetryOptions) time.Duration {
	wait := backoff
	if errors.Is(err, ErrRateLimit) {
		wait = opts.MaxDelay
		var retryable *RetryableError
		if errors.As(err, &retryable) && retryable.RetryAfter > 0 {
			wait = retryable.RetryAfter
		}
	}
	return min(wait, opts.MaxDelay)
}

// WithRetry runs operation until it succeeds, returns a permanent error, the
// attempts run out or ctx ends.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	opts = retryDefaults(opts)
	backoff := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var retryable *RetryableError
		if errors.As(err, &retryable) && !retryable.Retryable {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
		}

		wait := waitFor(err, backoff, opts)
		slog.Warn("Remote call failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"wait", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*opts.Multiplier), opts.MaxDelay)
	}
}
