package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"paperchat/internal/apperr"
)

type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt cap is reached. Delays grow exponentially up to MaxDelay with up to
// +30% jitter; total wall-clock exposure is bounded by attempts × MaxDelay.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	if opts.MaxAttempts <= 0 {
		opts = DefaultOptions()
	}

	delay := opts.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !apperr.Retryable(err) {
			return zero, err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		// Jitter spreads out retries from concurrent callers.
		jitter := rand.Float64() * 0.3
		actual := time.Duration(float64(delay) * (1 + jitter))

		slog.WarnContext(ctx, "operation failed, retrying",
			"attempt", attempt, "max_attempts", opts.MaxAttempts, "delay", actual, "error", err)

		select {
		case <-time.After(actual):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return zero, lastErr
}
