package retry

import (
	"time"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
type RetryParam struct {
	// MaxAttempts is the total number of attempts, i.e. 1 + maxRetries.
	MaxAttempts int
	// BackoffCapSeconds caps the exponential term: min(2^attempt, cap).
	BackoffCapSeconds int
	// RetryAfterCap bounds any server-provided wait hint.
	RetryAfterCap time.Duration
	RandomSeed    int64
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(maxAttempts, backoffCapSeconds int, retryAfterCap time.Duration, randomSeed int64) RetryParam {
	return RetryParam{
		MaxAttempts:       maxAttempts,
		BackoffCapSeconds: backoffCapSeconds,
		RetryAfterCap:     retryAfterCap,
		RandomSeed:        randomSeed,
	}
}

// Result carries the outcome of a retried operation together with the
// number of attempts actually made.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

func (r Result[T]) Attempts() int {
	return r.attempts
}
