package mdconvert

import (
	"fmt"

	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

type ConversionErrorCause string

const (
	ErrCauseConversionFailure  ConversionErrorCause = "conversion failure"
	ErrCauseStructureViolation ConversionErrorCause = "markdown structure violation"
)

type ConversionError struct {
	Message   string
	Retryable bool
	Cause     ConversionErrorCause
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("mdconvert error: %s", e.Cause)
}

func (e *ConversionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapConversionErrorToMetadataCause(err ConversionError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseStructureViolation:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseContentInvalid
	}
}
