package distributed_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/budget"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/distributed"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

func runCluster(t *testing.T, cfg config.Config, pages map[string]string) []string {
	t.Helper()

	broker := distributed.NewInprocBroker(5 * time.Second)
	visited := distributed.NewInprocVisitedSet()
	tracker := budget.NewTracker(budget.Caps{MaxPages: cfg.MaxPages()})
	fetch := newFakeFetcher(pages)

	coordinator := distributed.NewCoordinator(cfg, broker, visited, tracker, &sinkStub{})
	worker := distributed.NewWorker(distributed.WorkerDeps{
		Broker:        broker,
		Fetcher:       fetch,
		MetadataSink:  &sinkStub{},
		RetryParam:    retry.NewRetryParam(1, 32, time.Minute, 1),
		UserAgent:     "crawlkit-test/1.0",
		RespectRobots: false,
		Concurrency:   2,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_, err := coordinator.Run(ctx)
	require.NoError(t, err)

	stopWorker()
	<-workerDone

	fetched := fetch.fetchedURLs()
	sort.Strings(fetched)
	return fetched
}

func TestClusterCrawlsReachableGraph(t *testing.T) {
	pages := map[string]string{
		"http://site/":  page("/a", "/b"),
		"http://site/a": page("/b"),
		"http://site/b": page("/"),
	}
	cfg := config.Default(mustParse("http://site/"))

	fetched := runCluster(t, cfg, pages)

	assert.Equal(t, []string{
		"http://site/",
		"http://site/a",
		"http://site/b",
	}, fetched, "each URL is fetched exactly once despite the cycle")
}

func TestClusterRespectsScope(t *testing.T) {
	pages := map[string]string{
		"http://site/":  page("/a", "http://other/x"),
		"http://site/a": page(),
	}
	cfg := config.Default(mustParse("http://site/"))

	fetched := runCluster(t, cfg, pages)

	assert.NotContains(t, fetched, "http://other/x")
	assert.Contains(t, fetched, "http://site/a")
}

func TestClusterHonorsMaxDepth(t *testing.T) {
	pages := map[string]string{
		"http://site/":   page("/d1"),
		"http://site/d1": page("/d2"),
		"http://site/d2": page("/d3"),
		"http://site/d3": page("/d4"),
	}
	cfg := config.Default(mustParse("http://site/")).WithMaxDepth(2)

	fetched := runCluster(t, cfg, pages)

	assert.Contains(t, fetched, "http://site/d2", "a page at maxDepth is fetched")
	assert.NotContains(t, fetched, "http://site/d3", "links found at maxDepth are not enqueued")
}

func TestClusterErrorsAreReportedNotFatal(t *testing.T) {
	pages := map[string]string{
		"http://site/": page("/missing", "/a"),
		"http://site/a": page(),
		// /missing has no entry: the fake fetcher answers 404.
	}
	cfg := config.Default(mustParse("http://site/"))

	fetched := runCluster(t, cfg, pages)

	assert.Contains(t, fetched, "http://site/missing", "the fetch was attempted")
	assert.Contains(t, fetched, "http://site/a", "a sibling error does not stop the crawl")
}
