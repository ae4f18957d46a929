package normalize

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type RejectCause string

const (
	ErrCauseMalformed        RejectCause = "malformed url"
	ErrCauseSchemeRejected   RejectCause = "scheme not fetchable"
	ErrCauseFragmentOnly     RejectCause = "fragment-only reference"
	ErrCauseIgnoredExtension RejectCause = "ignored path extension"
	ErrCauseNoHost           RejectCause = "no host"
)

// RejectError reports why a raw reference cannot become a canonical URL.
// Rejection is always terminal for the reference; it is never retried.
type RejectError struct {
	Message string
	Cause   RejectCause
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("normalize reject: %s", e.Cause)
}

func (e *RejectError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
