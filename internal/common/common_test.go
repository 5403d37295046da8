package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "INFO", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Info("batch completed", "rows", 3)
	assert.Contains(t, buf.String(), `"msg":"batch completed"`)
	assert.Contains(t, buf.String(), `"rows":3`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUserError(t *testing.T) {
	base := errors.New("disk full")
	err := NewUserError("could not save report", base)

	assert.Equal(t, "could not save report: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "could not save report", UserMessage(err))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: 0},
		{name: "seconds", value: "7", want: 7 * time.Second},
		{name: "zero seconds", value: "0", want: 0},
		{name: "http date", value: "Fri, 01 Mar 2024 12:00:30 GMT", want: 30 * time.Second},
		{name: "past date", value: "Fri, 01 Mar 2024 11:00:00 GMT", want: 0},
		{name: "garbage", value: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, now))
		})
	}
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(errors.New("climatiq status 429"), 2*time.Second)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.True(t, IsRetryable(err))

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, 2*time.Second, retryable.RetryAfter)
}

func TestWithRetry(t *testing.T) {
	opts := service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("still broken")
		}, opts)
		require.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return Permanent(errors.New("bad request"))
		}, opts)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.False(t, IsRetryable(err))
	})

	t.Run("rate limit waits for retry-after", func(t *testing.T) {
		var stamps []time.Time
		err := WithRetry(context.Background(), func() error {
			stamps = append(stamps, time.Now())
			if len(stamps) == 1 {
				return RateLimited(errors.New("429"), 20*time.Millisecond)
			}
			return nil
		}, service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second})
		require.NoError(t, err)
		require.Len(t, stamps, 2)
		assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	})

	t.Run("retry-after is capped by max delay", func(t *testing.T) {
		start := time.Now()
		err := WithRetry(context.Background(), func() error {
			return RateLimited(errors.New("429"), time.Hour)
		}, service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
		require.ErrorIs(t, err, ErrMaxRetries)
		require.ErrorIs(t, err, ErrRateLimit)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error { return errors.New("fail") }, service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: time.Second,
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
