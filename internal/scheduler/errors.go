package scheduler

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type SchedulerErrorCause string

const (
	ErrCauseCancelled       SchedulerErrorCause = "run cancelled"
	ErrCauseBudgetExhausted SchedulerErrorCause = "budget exhausted"
	ErrCauseSetupFailure    SchedulerErrorCause = "setup failure"
)

type SchedulerError struct {
	Message string
	Cause   SchedulerErrorCause
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler error: %s", e.Cause)
}

func (e *SchedulerError) Severity() failure.Severity {
	switch e.Cause {
	case ErrCauseBudgetExhausted:
		// An exhausted budget drains the run in order; nothing broke.
		return failure.SeverityRecoverable
	default:
		return failure.SeverityFatal
	}
}

func (e *SchedulerError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseCancelled:
		return failure.KindCancelled
	case ErrCauseBudgetExhausted:
		return failure.KindBudgetExceeded
	default:
		return failure.KindConfigError
	}
}
