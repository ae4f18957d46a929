package fetcher_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err, "invalid url %q", raw)
	return *u
}

// sinkStub is a no-op MetadataSink.
type sinkStub struct{}

var _ metadata.MetadataSink = (*sinkStub)(nil)

func (s *sinkStub) RecordFetch(string, int, time.Duration, string, int, int)           {}
func (s *sinkStub) RecordSkip(string, metadata.SkipReason)                             {}
func (s *sinkStub) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}
func (s *sinkStub) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.slept = append(f.slept, d)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeSleeper) delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}

// outcomeRecorder captures ReportOutcome calls.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []outcome
}

type outcome struct {
	host       string
	statusCode int
	retryAfter time.Duration
}

func (o *outcomeRecorder) ReportOutcome(host string, statusCode int, retryAfter time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome{host: host, statusCode: statusCode, retryAfter: retryAfter})
}

func (o *outcomeRecorder) all() []outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]outcome, len(o.outcomes))
	copy(out, o.outcomes)
	return out
}

func testParam(maxAttempts int) retry.RetryParam {
	return retry.NewRetryParam(maxAttempts, 32, 120*time.Second, 7)
}

func newTestFetcher(options fetcher.Options, reporter fetcher.OutcomeReporter, sleeper *fakeSleeper) fetcher.HttpFetcher {
	f := fetcher.NewHttpFetcher(&sinkStub{}, reporter, options)
	return f.WithSleeper(sleeper)
}
