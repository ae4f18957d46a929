package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times total, applying full-jitter
// exponential backoff between attempts. Only retryable errors trigger a retry.
//
// Errors may carry a server-provided wait hint by implementing
// RetryAfter() (time.Duration, bool); when present the hint (bounded by
// RetryAfterCap) replaces the computed backoff for that attempt.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](ctx context.Context, retryParam RetryParam, sleeper timeutil.Sleeper, fn func() (T, failure.ClassifiedError)) Result[T] {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			value: zero,
			err: &RetryError{
				Message:   "max attempt cannot be 0",
				Cause:     ErrZeroAttempt,
				Retryable: true,
			},
			attempts: 0,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{
				value: zero,
				err: &RetryError{
					Message:   err.Error(),
					Cause:     ErrCancelled,
					Retryable: false,
					Last:      lastErr,
				},
				attempts: attempt - 1,
			}
		}

		result, err := fn()

		// Success case: no error
		if err == nil {
			return NewSuccessResult(result, attempt)
		}

		lastErr = err

		// If not retryable, return immediately
		if !isErrorRetryable(err) {
			return Result[T]{
				value:    zero,
				err:      err,
				attempts: attempt,
			}
		}

		// If this was the last attempt, break and return exhausted error
		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := nextDelay(attempt, retryParam, rng, err)
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return Result[T]{
				value: zero,
				err: &RetryError{
					Message:   sleepErr.Error(),
					Cause:     ErrCancelled,
					Retryable: false,
					Last:      lastErr,
				},
				attempts: attempt,
			}
		}
	}

	// Return failure result when max attempts are exhausted
	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true, // This is recoverable at scheduler level
			Last:      lastErr,
		},
		attempts: retryParam.MaxAttempts,
	}
}

// nextDelay prefers a server wait hint over the computed backoff.
func nextDelay(attempt int, param RetryParam, rng *rand.Rand, err failure.ClassifiedError) time.Duration {
	type hasWaitHint interface {
		RetryAfter() (time.Duration, bool)
	}
	if h, ok := err.(hasWaitHint); ok {
		if hint, present := h.RetryAfter(); present {
			if param.RetryAfterCap > 0 && hint > param.RetryAfterCap {
				hint = param.RetryAfterCap
			}
			return hint
		}
	}
	return timeutil.FullJitterBackoffDelay(attempt, param.BackoffCapSeconds, rng)
}

// isErrorRetryable checks if an error should be retried.
// It uses type assertion to check for the Retryable property.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	// Default to retryable if we can't determine
	return true
}
