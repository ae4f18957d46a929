package fetcher

import (
	"context"
	"net/url"
	"time"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

// Fetcher retrieves a single page with retries and returns a normalized
// response.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

// OutcomeReporter receives per-attempt response observations so the rate
// limiter can adapt. The fetcher reports every attempt that gets an HTTP
// status, including retried 429s and 5xx, with the parsed Retry-After when
// present. Attempts that fail in transport, and 2xx responses refused by the
// size guard or by a failed body read, are not reported.
type OutcomeReporter interface {
	ReportOutcome(host string, statusCode int, retryAfter time.Duration)
}

// Options configure transport-level behavior shared by all requests.
type Options struct {
	// Timeout bounds one attempt end to end.
	Timeout time.Duration
	// VerifyTLS is on by default; disabling it accepts any certificate.
	VerifyTLS bool
	// Proxy routes requests through the given URL when non-nil.
	Proxy *url.URL
	// MaxResponseBytes rejects larger bodies; 0 means unlimited.
	MaxResponseBytes int64
	// AllowRedirects follows up to MaxRedirects redirects.
	AllowRedirects bool
	// MaxRedirects caps the redirect chain.
	MaxRedirects int
	// AllowSchemeDowngrade permits https→http redirects.
	AllowSchemeDowngrade bool
}

// DefaultOptions mirror the engine defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:        10 * time.Second,
		VerifyTLS:      true,
		AllowRedirects: true,
		MaxRedirects:   10,
	}
}
