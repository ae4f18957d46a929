package artifact

import (
	"context"
	"time"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

/*
PageArtifact is the typed contract between the engine core and downstream
sinks. Sinks must be commutative: emitted artifacts carry no global order.
*/

type PageArtifact struct {
	URL            string            `json:"url"`
	FinalURL       string            `json:"finalUrl"`
	HTTPStatus     int               `json:"httpStatus"`
	Headers        map[string]string `json:"headers,omitempty"`
	ContentType    string            `json:"contentType,omitempty"`
	ContentHashHex string            `json:"contentHashHex,omitempty"`
	FetchedAt      time.Time         `json:"fetchedAt"`
	Depth          int               `json:"depth"`
	Body           []byte            `json:"-"`
	RenderedDom    bool              `json:"renderedDom,omitempty"`
	// Unchanged is set when the body's hash was already in the ledger or
	// matched the stored incremental hash.
	Unchanged bool `json:"unchanged,omitempty"`
	Attempts  int  `json:"attempts,omitempty"`
	// Payload carries handler output (converted markdown, extracted data).
	Payload any `json:"-"`
	// Error is set on terminal failures; such artifacts have no body.
	Error *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the terminal error surfaced on an artifact.
type ErrorInfo struct {
	Kind     failure.Kind `json:"kind"`
	Message  string       `json:"message"`
	Attempts int          `json:"attempts"`
}

// Succeeded reports whether the artifact represents a fetched page.
func (a PageArtifact) Succeeded() bool {
	return a.Error == nil && a.HTTPStatus >= 200 && a.HTTPStatus < 300
}

// Summary is the terminal accounting of one run.
type Summary struct {
	PagesCrawled     int            `json:"pagesCrawled"`
	BytesFetched     uint64         `json:"bytesFetched"`
	ErrorsByKind     map[string]int `json:"errorsByKind"`
	SkippedByRobots  int            `json:"skippedByRobots"`
	SkippedByScope   int            `json:"skippedByScope"`
	SkippedQueueFull int            `json:"skippedQueueFull"`
	BudgetExceeded   bool           `json:"budgetExceeded"`
	DurationSeconds  float64        `json:"durationSeconds"`
}

// Emitter consumes the artifact stream. Implementations must tolerate
// concurrent Emit calls from multiple workers.
type Emitter interface {
	Emit(ctx context.Context, page PageArtifact) failure.ClassifiedError
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, page PageArtifact) failure.ClassifiedError

func (f EmitterFunc) Emit(ctx context.Context, page PageArtifact) failure.ClassifiedError {
	return f(ctx, page)
}
