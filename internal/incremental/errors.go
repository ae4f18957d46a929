package incremental

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseOpenFailure  StoreErrorCause = "failed to open store"
	ErrCauseQueryFailure StoreErrorCause = "query failed"
	ErrCauseWriteFailure StoreErrorCause = "write failed"
)

type StoreError struct {
	Message string
	Cause   StoreErrorCause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("incremental store error: %s", e.Cause)
}

func (e *StoreError) Severity() failure.Severity {
	// Store failures degrade incremental behavior but never abort a crawl;
	// an unreadable record simply looks new.
	return failure.SeverityRecoverable
}
