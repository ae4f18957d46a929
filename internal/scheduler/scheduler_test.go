package scheduler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/scheduler"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err, "invalid url %q", raw)
	return *u
}

func htmlPage(links ...string) string {
	body := "<html><body>"
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">link</a>`, link)
	}
	return body + "</body></html>"
}

func serveHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

// testConfig keeps politeness delays tiny so crawls finish fast.
func testConfig(t *testing.T, seedURL string) config.Config {
	t.Helper()
	return config.Default(mustURL(t, seedURL)).
		WithBaseDelay(time.Millisecond).
		WithRandomSeed(7).
		WithTimeout(5 * time.Second)
}

func runCrawl(t *testing.T, cfg config.Config) (*artifact.Collector, artifact.Summary, error) {
	t.Helper()
	collector := artifact.NewCollector()
	engine, err := scheduler.NewScheduler(cfg, zap.NewNop(), collector)
	require.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	execution, runErr := engine.ExecuteCrawling(ctx)
	return collector, execution.Summary, runErr
}

func successfulURLs(collector *artifact.Collector) map[string]artifact.PageArtifact {
	pages := make(map[string]artifact.PageArtifact)
	for _, page := range collector.Pages() {
		if page.Succeeded() {
			pages[page.URL] = page
		}
	}
	return pages
}

func TestBasicCrawl(t *testing.T) {
	// Seed links to two internal pages and one external; sameHostOnly
	// keeps the crawl on the seed host.
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		serveHTML(w, htmlPage("/a", "/b", "http://other.invalid/x"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, htmlPage()) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, htmlPage()) })

	cfg := testConfig(t, server.URL+"/").WithMaxDepth(1)
	collector, summary, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	fetched := successfulURLs(collector)
	assert.Len(t, fetched, 3)
	assert.Contains(t, fetched, server.URL+"/")
	assert.Contains(t, fetched, server.URL+"/a")
	assert.Contains(t, fetched, server.URL+"/b")

	assert.Equal(t, 3, summary.PagesCrawled)
	assert.Equal(t, 1, summary.SkippedByScope, "the external link is scope-rejected")
	assert.Positive(t, summary.BytesFetched)
}

func TestRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	var privateFetched atomic.Bool
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, htmlPage("/private/x", "/public"))
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		privateFetched.Store(true)
		serveHTML(w, htmlPage())
	})
	mux.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, htmlPage()) })

	cfg := testConfig(t, server.URL+"/").WithMaxDepth(1)
	collector, summary, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	assert.False(t, privateFetched.Load(), "disallowed URL must never be requested")
	assert.Equal(t, 1, summary.SkippedByRobots)
	fetched := successfulURLs(collector)
	assert.Contains(t, fetched, server.URL+"/public")
	assert.NotContains(t, fetched, server.URL+"/private/x")
}

func TestRetryAfter429(t *testing.T) {
	var calls atomic.Int32
	var firstResponse, secondRequest time.Time
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			firstResponse = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondRequest = time.Now()
		serveHTML(w, htmlPage())
	})

	cfg := testConfig(t, server.URL+"/").WithMaxDepth(0)
	collector, _, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	fetched := successfulURLs(collector)
	page, found := fetched[server.URL+"/"]
	require.True(t, found)
	assert.Equal(t, 200, page.HTTPStatus)
	assert.Equal(t, 2, page.Attempts)
	assert.GreaterOrEqual(t, secondRequest.Sub(firstResponse), time.Second,
		"the retry must wait at least the Retry-After interval")
}

func TestBudgetCutoff(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			links := make([]string, 0, 10)
			for i := 0; i < 10; i++ {
				links = append(links, fmt.Sprintf("/p%d", i))
			}
			serveHTML(w, htmlPage(links...))
			return
		}
		serveHTML(w, htmlPage())
	})

	cfg := testConfig(t, server.URL+"/").WithBudget(2, 0, 0)
	collector, summary, runErr := runCrawl(t, cfg)

	require.NotNil(t, runErr)
	var schedErr *scheduler.SchedulerError
	require.ErrorAs(t, runErr, &schedErr)
	assert.Equal(t, scheduler.ErrCauseBudgetExhausted, schedErr.Cause)

	assert.True(t, summary.BudgetExceeded)
	assert.Len(t, successfulURLs(collector), 2, "no pages beyond the budget are emitted")
	assert.Equal(t, 2, summary.PagesCrawled)
}

func TestBudgetCutoffManyWorkers(t *testing.T) {
	// Many parallel workers racing toward the page cap: admission slots
	// must keep emissions at exactly maxPages, never beyond.
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			links := make([]string, 0, 20)
			for i := 0; i < 20; i++ {
				links = append(links, fmt.Sprintf("/p%d", i))
			}
			serveHTML(w, htmlPage(links...))
			return
		}
		// A small stall widens the window in which workers race the cap.
		time.Sleep(20 * time.Millisecond)
		serveHTML(w, htmlPage())
	})

	cfg := testConfig(t, server.URL+"/").
		WithWorkers(8).
		WithBudget(3, 0, 0)
	collector, summary, runErr := runCrawl(t, cfg)

	require.NotNil(t, runErr)
	var schedErr *scheduler.SchedulerError
	require.ErrorAs(t, runErr, &schedErr)
	assert.Equal(t, scheduler.ErrCauseBudgetExhausted, schedErr.Cause)

	assert.Len(t, successfulURLs(collector), 3, "emissions never overshoot maxPages")
	assert.Equal(t, 3, summary.PagesCrawled)
	assert.True(t, summary.BudgetExceeded)
}

func TestConditionalRecrawl(t *testing.T) {
	var sawValidator atomic.Bool
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawValidator.Store(true)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		serveHTML(w, htmlPage())
	})

	dbPath := filepath.Join(t.TempDir(), "pages.db")
	cfg := testConfig(t, server.URL+"/").
		WithMaxDepth(0).
		WithIncrementalStore(dbPath, 0, false)

	// First run stores the validators.
	collector, _, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)
	first := successfulURLs(collector)[server.URL+"/"]
	assert.Equal(t, 200, first.HTTPStatus)

	// Second run revalidates and gets a 304.
	collector, _, runErr = runCrawl(t, cfg)
	require.Nil(t, runErr)
	assert.True(t, sawValidator.Load(), "second run must send If-None-Match")

	var notModified *artifact.PageArtifact
	for _, page := range collector.Pages() {
		if page.HTTPStatus == http.StatusNotModified {
			notModified = &page
			break
		}
	}
	require.NotNil(t, notModified, "the 304 round trip is surfaced as an artifact")
	assert.True(t, notModified.Unchanged)
}

func TestDuplicateContentFirstSeenOnce(t *testing.T) {
	identical := htmlPage()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, htmlPage("/a", "/b"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, identical) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, identical) })

	cfg := testConfig(t, server.URL+"/").
		WithMaxDepth(1).
		WithHashStore(filepath.Join(t.TempDir(), "hashes.db"))

	collector, _, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	fetched := successfulURLs(collector)
	pageA, foundA := fetched[server.URL+"/a"]
	pageB, foundB := fetched[server.URL+"/b"]
	require.True(t, foundA)
	require.True(t, foundB)

	assert.Equal(t, pageA.ContentHashHex, pageB.ContentHashHex)
	// Exactly one of the duplicates claims first-seen.
	assert.NotEqual(t, pageA.Unchanged, pageB.Unchanged,
		"one duplicate is new, the other is unchanged")
}

func TestCancellationStopsCrawl(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(10 * time.Second):
		}
		serveHTML(w, htmlPage())
	})

	cfg := testConfig(t, server.URL+"/")
	collector := artifact.NewCollector()
	engine, err := scheduler.NewScheduler(cfg, zap.NewNop(), collector)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
		close(release)
	}()

	start := time.Now()
	_, runErr := engine.ExecuteCrawling(ctx)
	require.NotNil(t, runErr)
	var schedErr *scheduler.SchedulerError
	require.ErrorAs(t, runErr, &schedErr)
	assert.Equal(t, scheduler.ErrCauseCancelled, schedErr.Cause)
	assert.Less(t, time.Since(start), 15*time.Second, "workers terminate promptly after cancellation")
}

func TestDepthBoundary(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			serveHTML(w, htmlPage("/d1"))
		case "/d1":
			serveHTML(w, htmlPage("/d2"))
		case "/d2":
			serveHTML(w, htmlPage("/d3"))
		default:
			serveHTML(w, htmlPage())
		}
	})

	cfg := testConfig(t, server.URL+"/").WithMaxDepth(2)
	collector, _, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	fetched := successfulURLs(collector)
	assert.Contains(t, fetched, server.URL+"/d2", "a page at maxDepth is fetched")
	assert.NotContains(t, fetched, server.URL+"/d3", "its discovered links are not enqueued")
}

func TestSamePathScope(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/docs/" {
			serveHTML(w, htmlPage("/docs/page", "/blog/post"))
			return
		}
		serveHTML(w, htmlPage())
	})
	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) { serveHTML(w, htmlPage()) })

	cfg := testConfig(t, server.URL+"/docs/").WithScope(true, true).WithMaxDepth(1)
	collector, summary, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	fetched := successfulURLs(collector)
	assert.Contains(t, fetched, server.URL+"/docs/page")
	assert.NotContains(t, fetched, server.URL+"/blog/post")
	assert.Equal(t, 1, summary.SkippedByScope)
}

func TestErrorArtifactCarriesKindAndAttempts(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, htmlPage("/gone"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	cfg := testConfig(t, server.URL+"/").WithMaxDepth(1)
	collector, summary, runErr := runCrawl(t, cfg)
	require.Nil(t, runErr)

	var errored *artifact.PageArtifact
	for _, page := range collector.Pages() {
		if page.Error != nil {
			errored = &page
			break
		}
	}
	require.NotNil(t, errored)
	assert.Equal(t, server.URL+"/gone", errored.URL)
	assert.Equal(t, 1, errored.Error.Attempts, "4xx is terminal on the first attempt")
	assert.Equal(t, 1, summary.ErrorsByKind["http_error"])
}
