package distributed_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

// sinkStub is a no-op MetadataSink.
type sinkStub struct{}

var _ metadata.MetadataSink = (*sinkStub)(nil)

func (s *sinkStub) RecordFetch(string, int, time.Duration, string, int, int)           {}
func (s *sinkStub) RecordSkip(string, metadata.SkipReason)                             {}
func (s *sinkStub) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}
func (s *sinkStub) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}

// fakeFetcher serves canned HTML bodies keyed by URL string.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

var _ fetcher.Fetcher = (*fakeFetcher)(nil)

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(
	_ context.Context,
	_ int,
	fetchParam fetcher.FetchParam,
	_ retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	target := fetchParam.FetchURL()
	key := target.String()

	f.mu.Lock()
	f.fetched = append(f.fetched, key)
	body, found := f.pages[key]
	f.mu.Unlock()

	if !found {
		return fetcher.FetchResult{}, &fetcher.FetchError{
			Message:    fmt.Sprintf("client error: 404 for %s", key),
			Retryable:  false,
			Cause:      fetcher.ErrCauseRequestClientError,
			StatusCode: 404,
		}
	}

	return fetcher.NewFetchResultForTest(
		target,
		[]byte(body),
		200,
		"text/html",
		http.Header{"Content-Type": []string{"text/html"}},
		time.Now(),
	), nil
}

func (f *fakeFetcher) fetchedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

func page(links ...string) string {
	body := "<html><body>"
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">link</a>`, link)
	}
	return body + "</body></html>"
}

func mustParse(raw string) url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return *u
}
