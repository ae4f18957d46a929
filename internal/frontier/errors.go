package frontier

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type FrontierErrorCause string

const (
	ErrCauseQueueFull FrontierErrorCause = "queue full"
	ErrCauseClosed    FrontierErrorCause = "frontier closed"
	ErrCauseDuplicate FrontierErrorCause = "duplicate url"
)

// FrontierError reports a rejected submission. Queue-full and duplicate
// rejections are normal outcomes the scheduler counts; neither aborts the
// crawl.
type FrontierError struct {
	Message string
	Cause   FrontierErrorCause
}

func (e *FrontierError) Error() string {
	return fmt.Sprintf("frontier error: %s", e.Cause)
}

func (e *FrontierError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
