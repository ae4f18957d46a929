package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/budget"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/frontier"
	"github.com/rohmanhakim/crawlkit/internal/hashstore"
	"github.com/rohmanhakim/crawlkit/internal/incremental"
	"github.com/rohmanhakim/crawlkit/internal/links"
	"github.com/rohmanhakim/crawlkit/internal/mdconvert"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/metrics"
	"github.com/rohmanhakim/crawlkit/internal/normalize"
	"github.com/rohmanhakim/crawlkit/internal/render"
	"github.com/rohmanhakim/crawlkit/internal/robots"
	"github.com/rohmanhakim/crawlkit/internal/robots/cache"
	"github.com/rohmanhakim/crawlkit/internal/router"
	"github.com/rohmanhakim/crawlkit/internal/sitemap"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
	"github.com/rohmanhakim/crawlkit/pkg/limiter"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Admission guarantees:
 - Scheduler is the ONLY component allowed to decide whether a URL
   may enter the crawl frontier.
 - All semantic admission checks (robots.txt, scope, depth) MUST be
   completed before submitting a URL to the frontier.
 - No other component may enqueue, reject, or reorder URLs.
 - The frontier only accepts already-admitted URLs.
 - Pipeline stages may detect and classify failure, but must never decide
   retry, continuation, or abortion.

 The scheduler coordinates pipeline execution but does not delegate
 control-flow decisions to downstream stages.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.

 Worker pipeline, per dequeued URL:
   rate-limit wait → incremental check → fetch (with conditional headers)
   → content hash ledger → route → emit artifact → admit discovered links

 Termination: the pool exits when the frontier is empty with no worker
 mid-fetch, when the budget trips (orderly drain), or on cancellation.
 Cancelled in-flight URLs never join the visited set.
*/

type Scheduler struct {
	cfg              config.Config
	metadataSink     metadata.MetadataSink
	crawlFinalizer   metadata.CrawlFinalizer
	robot            robots.Robot
	frontier         *frontier.Frontier
	htmlFetcher      fetcher.Fetcher
	rateLimiter      limiter.RateLimiter
	incrementalStore *incremental.Store
	hashStore        *hashstore.Store
	contentRouter    *router.ContentRouter
	emitter          artifact.Emitter
	budgetTracker    *budget.Tracker
	crawlMetrics     *metrics.Metrics
	normalizer       normalize.URLNormalizer
	scope            normalize.Scope
	sitemapLoader    sitemap.Loader
	retryParam       retry.RetryParam

	runID         string
	counters      *counters
	activeWorkers atomic.Int32
	stopping      atomic.Bool
}

// NewScheduler wires the full single-process engine from configuration.
// The emitter receives the artifact stream; pass an artifact.Collector for
// programmatic use or a storage sink for persistence.
func NewScheduler(cfg config.Config, logger *zap.Logger, emitter artifact.Emitter) (*Scheduler, failure.ClassifiedError) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	recorder := metadata.NewRecorder(logger, "crawl-worker")
	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())

	var reporter fetcher.OutcomeReporter
	if cfg.Adaptive() {
		reporter = rateLimiter
	}

	httpFetcher := fetcher.NewHttpFetcher(&recorder, reporter, fetcher.Options{
		Timeout:          cfg.Timeout(),
		VerifyTLS:        cfg.VerifyTls(),
		Proxy:            cfg.Proxy(),
		MaxResponseBytes: cfg.MaxResponseBytes(),
		AllowRedirects:   true,
		MaxRedirects:     10,
	})
	if cfg.UseRenderedDom() && cfg.RenderEndpoint() != "" {
		httpFetcher = httpFetcher.WithRenderer(render.NewSidecarRenderer(cfg.RenderEndpoint(), cfg.Timeout()))
	}

	strategy, strategyErr := strategyFromConfig(cfg)
	if strategyErr != nil {
		return nil, strategyErr
	}

	var incrementalStore *incremental.Store
	if cfg.IncrementalDbPath() != "" {
		store, err := incremental.NewStore(cfg.IncrementalDbPath())
		if err != nil {
			return nil, err
		}
		incrementalStore = store
	}
	var hashStore *hashstore.Store
	if cfg.HashStoreDbPath() != "" {
		store, err := hashstore.NewStore(cfg.HashStoreDbPath())
		if err != nil {
			return nil, err
		}
		hashStore = store
	}

	contentRouter := router.NewContentRouter()
	contentRouter.Register("text/html", links.HTMLHandler())
	contentRouter.Register("application/xhtml+xml", links.HTMLHandler())
	if cfg.ConvertMarkdown() {
		contentRouter.Register("text/html", composeHTMLHandlers(links.HTMLHandler(), mdconvert.MarkdownHandler(&recorder)))
	}

	seed := cfg.RandomSeed()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Scheduler{
		cfg:              cfg,
		metadataSink:     &recorder,
		crawlFinalizer:   &recorder,
		robot:            robots.NewCachedRegistry(&recorder, cache.NewMemoryCache(), cfg.Timeout()),
		frontier:         frontier.NewBoundedFrontier(strategy, cfg.MaxQueueSize(), 0),
		htmlFetcher:      &httpFetcher,
		rateLimiter:      rateLimiter,
		incrementalStore: incrementalStore,
		hashStore:        hashStore,
		contentRouter:    contentRouter,
		emitter:          emitter,
		budgetTracker: budget.NewTracker(budget.Caps{
			MaxPages:     cfg.MaxPages(),
			MaxBytes:     cfg.MaxBytes(),
			MaxWallClock: cfg.MaxWallClock(),
		}),
		crawlMetrics:  metrics.NewNop(),
		normalizer:    normalize.NewURLNormalizer(),
		sitemapLoader: sitemap.NewLoader(cfg.UserAgent(), cfg.Timeout()),
		retryParam:    retry.NewRetryParam(1+cfg.MaxRetries(), 32, 120*time.Second, seed),
		runID:         uuid.NewString(),
		counters:      newCounters(),
	}
	return s, nil
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies for
// testing. This constructor allows tests to provide mock implementations
// without relying on real infrastructure.
func NewSchedulerWithDeps(
	cfg config.Config,
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	rateLimiter limiter.RateLimiter,
	htmlFetcher fetcher.Fetcher,
	robot robots.Robot,
	front *frontier.Frontier,
	contentRouter *router.ContentRouter,
	emitter artifact.Emitter,
	budgetTracker *budget.Tracker,
) *Scheduler {
	seed := cfg.RandomSeed()
	if seed == 0 {
		seed = 1
	}
	return &Scheduler{
		cfg:            cfg,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		robot:          robot,
		frontier:       front,
		htmlFetcher:    htmlFetcher,
		rateLimiter:    rateLimiter,
		contentRouter:  contentRouter,
		emitter:        emitter,
		budgetTracker:  budgetTracker,
		crawlMetrics:   metrics.NewNop(),
		normalizer:     normalize.NewURLNormalizer(),
		retryParam:     retry.NewRetryParam(1+cfg.MaxRetries(), 32, 120*time.Second, seed),
		runID:          uuid.NewString(),
		counters:       newCounters(),
	}
}

// WithStores attaches the persistent stores; test helper.
func (s *Scheduler) WithStores(inc *incremental.Store, hashes *hashstore.Store) *Scheduler {
	s.incrementalStore = inc
	s.hashStore = hashes
	return s
}

// WithMetrics replaces the unregistered default metrics.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.crawlMetrics = m
	return s
}

// SubmitUrlForAdmission performs all semantic checks required for a URL
// to enter the crawl frontier.
//
// This function is the single admission choke point for the system.
// If it returns without submitting, the URL was skipped: a rejection is
// recorded as a skip and a duplicate is dropped silently; there is no retry
// and no abort.
func (s *Scheduler) SubmitUrlForAdmission(
	ctx context.Context,
	target url.URL,
	sourceContext frontier.SourceContext,
	depth int,
	discoveredFrom string,
	priorityScore float64,
) {
	key := target.String()

	// A page at maxDepth is fetched; its links land here at maxDepth+1 and
	// stop.
	if depth > s.cfg.MaxDepth() {
		s.metadataSink.RecordSkip(key, metadata.SkipDepthExceeded)
		return
	}

	if !s.scope.InScope(target) {
		s.counters.countScopeSkip()
		s.crawlMetrics.SkippedByKind.WithLabelValues(string(metadata.SkipOutOfScope)).Inc()
		s.metadataSink.RecordSkip(key, metadata.SkipOutOfScope)
		return
	}

	if s.cfg.RespectRobots() {
		decision := s.robot.Decide(ctx, target)
		if decision.CrawlDelay != nil && s.cfg.RespectCrawlDelay() {
			s.rateLimiter.SetCrawlDelay(target.Host, *decision.CrawlDelay)
		}
		if !decision.Allowed {
			s.counters.countRobotsSkip()
			s.crawlMetrics.SkippedByKind.WithLabelValues(string(metadata.SkipRobotsDisallowed)).Inc()
			s.metadataSink.RecordSkip(key, metadata.SkipRobotsDisallowed)
			return
		}
	}

	candidate := frontier.NewCrawlAdmissionCandidate(
		target,
		sourceContext,
		frontier.NewDiscoveryMetadata(depth, discoveredFrom, priorityScore),
	)
	if err := s.frontier.Submit(candidate); err != nil {
		if err.Cause == frontier.ErrCauseQueueFull {
			s.counters.countQueueFull()
			s.crawlMetrics.SkippedByKind.WithLabelValues(string(metadata.SkipQueueFull)).Inc()
			s.metadataSink.RecordSkip(key, metadata.SkipQueueFull)
		}
		// Duplicates are silent: coalescing is the frontier's job.
	}
}

// ExecuteCrawling runs the crawl to completion and returns the summary.
// The returned error is nil on a normal drain, a budget error after an
// orderly budget stop, a cancellation error, or a setup error when the seed
// URL is rejected.
func (s *Scheduler) ExecuteCrawling(ctx context.Context) (CrawlingExecution, failure.ClassifiedError) {
	crawlStartTime := time.Now()

	defer func() {
		_, _, _, _, totalErrors := s.counters.snapshot()
		s.crawlFinalizer.RecordFinalCrawlStats(
			int(s.budgetTracker.Pages()),
			uint64(s.budgetTracker.Bytes()),
			totalErrors,
			time.Since(crawlStartTime),
		)
	}()

	startURL := s.cfg.StartURL()
	seedCanonical, normErr := s.normalizer.Normalize(startURL.String(), nil)
	if normErr != nil {
		return CrawlingExecution{}, &SchedulerError{
			Message: fmt.Sprintf("seed url rejected: %v", normErr),
			Cause:   ErrCauseSetupFailure,
		}
	}
	s.scope = normalize.NewScope(seedCanonical, s.cfg.SameHostOnly(), s.cfg.SamePathOnly())
	s.robot.Init(s.cfg.UserAgent())

	s.SubmitUrlForAdmission(ctx, seedCanonical, frontier.SourceSeed, 0, "", 0)
	if s.cfg.SeedFromSitemaps() {
		s.seedFromSitemaps(ctx, seedCanonical)
	}

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers(); i++ {
		wg.Add(1)
		go func(workerIndex int) {
			defer wg.Done()
			s.workerLoop(ctx)
		}(i)
	}
	wg.Wait()

	if s.stopping.Load() {
		s.frontier.Drain()
	}

	execution := CrawlingExecution{Summary: s.buildSummary(crawlStartTime)}

	if ctx.Err() != nil {
		return execution, &SchedulerError{
			Message: ctx.Err().Error(),
			Cause:   ErrCauseCancelled,
		}
	}
	if s.budgetTracker.Exceeded() {
		return execution, &SchedulerError{
			Message: "configured budget reached",
			Cause:   ErrCauseBudgetExhausted,
		}
	}
	return execution, nil
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil || s.stopping.Load() {
			return
		}

		token, ok := s.frontier.Dequeue(ctx)
		if !ok {
			if ctx.Err() != nil || s.stopping.Load() {
				return
			}
			// Idle timeout: the crawl is over only when nothing is queued
			// and nobody is mid-fetch.
			if s.frontier.Size() == 0 && s.activeWorkers.Load() == 0 {
				return
			}
			continue
		}

		if s.budgetTracker.Exceeded() {
			// No new fetches once the budget trips; the token is dropped
			// with the rest of the drain.
			s.frontier.Release(token)
			s.beginDrain()
			return
		}

		// Admission slots cap dispatched fetches so N racing workers can
		// never emit more than maxPages between them. A refused slot means
		// the cap is fully claimed by in-flight or recorded pages: put the
		// token back and wait for a slot to free or the budget to trip.
		if !s.budgetTracker.ReservePage() {
			s.requeue(token)
			if s.budgetTracker.Exceeded() {
				s.beginDrain()
				return
			}
			// A slot frees only when a dispatched URL ends without a page
			// (failed fetch, freshness skip, cancelled wait) or the cap trips;
			// idle briefly instead of spinning on the same token.
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		s.activeWorkers.Add(1)
		s.crawlMetrics.InFlight.Set(float64(s.activeWorkers.Load()))
		s.processToken(ctx, token)
		s.activeWorkers.Add(-1)
		s.crawlMetrics.InFlight.Set(float64(s.activeWorkers.Load()))
		s.crawlMetrics.QueueDepth.Set(float64(s.frontier.Size()))

		if s.budgetTracker.Exceeded() {
			s.beginDrain()
			return
		}
	}
}

// requeue puts an undispatched token back into the queue with its
// discovery metadata intact.
func (s *Scheduler) requeue(token frontier.CrawlToken) {
	s.frontier.Release(token)
	candidate := frontier.NewCrawlAdmissionCandidate(
		token.URL(),
		frontier.SourceCrawl,
		frontier.NewDiscoveryMetadata(token.Depth(), token.DiscoveredFrom(), token.PriorityScore()),
	)
	// Admission checks already passed once; a duplicate rejection here
	// can only mean another worker raced it through, which is fine.
	_ = s.frontier.Submit(candidate)
}

func (s *Scheduler) beginDrain() {
	if !s.stopping.Swap(true) {
		s.frontier.Drain()
		s.frontier.Close()
	}
}

func (s *Scheduler) processToken(ctx context.Context, token frontier.CrawlToken) {
	target := token.URL()
	host := target.Host

	if s.cfg.UsePerHostDelay() {
		if err := s.rateLimiter.Await(ctx, host); err != nil {
			// Cancelled while waiting: the URL was never fetched and must
			// not look visited.
			s.budgetTracker.ReleasePage()
			s.frontier.Release(token)
			return
		}
	}

	policy := incremental.Policy{
		Force:  s.cfg.ForceRecrawl(),
		MaxAge: s.cfg.IncrementalMaxAge(),
	}
	var condHeaders map[string]string
	if s.incrementalStore != nil {
		should, _ := s.incrementalStore.ShouldCrawl(target.String(), policy)
		if !should {
			s.metadataSink.RecordSkip(target.String(), metadata.SkipFresh)
			s.budgetTracker.ReleasePage()
			s.frontier.MarkCompleted(token)
			return
		}
		if !policy.Force {
			condHeaders = s.incrementalStore.ConditionalHeaders(target.String())
		}
	}

	fetchParam := fetcher.NewFetchParam(target, s.cfg.UserAgent()).
		WithConditionalHeaders(condHeaders)
	if s.cfg.UseRenderedDom() {
		fetchParam = fetchParam.WithRenderedDom(render.Options{
			WaitForSelector: s.cfg.RenderWaitSelector(),
			WaitForTimeout:  s.cfg.RenderWaitTimeout(),
			Browser:         render.BrowserType(s.cfg.BrowserType()),
		})
	}

	result, fetchErr := s.htmlFetcher.Fetch(ctx, token.Depth(), fetchParam, s.retryParam)
	if fetchErr != nil {
		s.handleFetchFailure(ctx, token, fetchErr)
		return
	}

	if result.NotModified() {
		s.handleNotModified(ctx, token, &result)
		return
	}

	s.handleSuccess(ctx, token, &result)
}

func (s *Scheduler) handleFetchFailure(ctx context.Context, token frontier.CrawlToken, fetchErr failure.ClassifiedError) {
	// No page came out of this slot; free it for another URL.
	s.budgetTracker.ReleasePage()

	kind := terminalKind(fetchErr)

	if kind == failure.KindCancelled {
		// Cancelled operations do not mutate the visited set.
		s.frontier.Release(token)
		return
	}

	s.counters.countError(kind)
	s.crawlMetrics.ErrorsByKind.WithLabelValues(string(kind)).Inc()

	target := token.URL()
	s.emit(ctx, artifact.PageArtifact{
		URL:       target.String(),
		FinalURL:  target.String(),
		Depth:     token.Depth(),
		FetchedAt: time.Now(),
		Error: &artifact.ErrorInfo{
			Kind:     kind,
			Message:  fetchErr.Error(),
			Attempts: fetcher.Attempts(fetchErr, s.retryParam),
		},
	})
	s.frontier.MarkCompleted(token)
}

func (s *Scheduler) handleNotModified(ctx context.Context, token frontier.CrawlToken, result *fetcher.FetchResult) {
	target := token.URL()
	if s.incrementalStore != nil {
		if err := s.incrementalStore.Record(target.String(), 304, "", "", nil); err != nil {
			s.recordStoreError("incremental.Record", target, err)
		}
	}

	resultURL := result.URL()
	s.emit(ctx, artifact.PageArtifact{
		URL:        target.String(),
		FinalURL:   resultURL.String(),
		HTTPStatus: result.Code(),
		Depth:      token.Depth(),
		FetchedAt:  result.FetchedAt(),
		Unchanged:  true,
		Attempts:   result.Attempts(),
	})
	s.budgetTracker.Record(1, 0)
	s.frontier.MarkCompleted(token)
}

func (s *Scheduler) handleSuccess(ctx context.Context, token frontier.CrawlToken, result *fetcher.FetchResult) {
	target := token.URL()
	body := result.Body()

	// Content-hash comparison happens after decode and before the artifact
	// is emitted.
	hashHex := hashstore.Hash(hashableBody(result))
	isNew := true
	if s.hashStore != nil {
		_, recordedNew, err := s.hashStore.Record(hashHex, target.String(), "", s.runID)
		if err != nil {
			s.recordStoreError("hashstore.Record", target, err)
		} else {
			isNew = recordedNew
		}
	}

	unchanged := !isNew
	if s.incrementalStore != nil {
		if s.incrementalStore.UnchangedSince(target.String(), hashableBody(result)) {
			unchanged = true
		}
		err := s.incrementalStore.Record(
			target.String(),
			result.Code(),
			result.Header("ETag"),
			result.Header("Last-Modified"),
			hashableBody(result),
		)
		if err != nil {
			s.recordStoreError("incremental.Record", target, err)
		}
	}

	output, routeErr := s.contentRouter.Route(ctx, result.ContentType(), result)
	if routeErr != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"ContentRouter.Route",
			metadata.CauseContentInvalid,
			routeErr.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target.String())},
		)
	}

	resultURL := result.URL()
	s.emit(ctx, artifact.PageArtifact{
		URL:            target.String(),
		FinalURL:       resultURL.String(),
		HTTPStatus:     result.Code(),
		Headers:        flattenHeaders(result),
		ContentType:    result.ContentType(),
		ContentHashHex: hashHex,
		FetchedAt:      result.FetchedAt(),
		Depth:          token.Depth(),
		Body:           body,
		RenderedDom:    result.Rendered(),
		Unchanged:      unchanged,
		Attempts:       result.Attempts(),
		Payload:        output.Payload,
	})

	s.crawlMetrics.PagesFetched.Inc()
	s.crawlMetrics.BytesFetched.Add(float64(len(body)))
	s.budgetTracker.Record(1, len(body))
	s.frontier.MarkCompleted(token)

	// Links found at maxDepth die at admission, not here.
	finalURL := result.URL()
	for _, raw := range output.DiscoveredLinks {
		normalized, err := s.normalizer.Normalize(raw, &finalURL)
		if err != nil {
			continue
		}
		s.SubmitUrlForAdmission(ctx, normalized, frontier.SourceCrawl, token.Depth()+1, target.String(), 0)
	}
}

func (s *Scheduler) seedFromSitemaps(ctx context.Context, seed url.URL) {
	for _, sitemapURL := range s.robot.Sitemaps(ctx, seed.Scheme, seed.Host) {
		entries, err := s.sitemapLoader.Load(ctx, sitemapURL)
		if err != nil {
			s.metadataSink.RecordError(
				time.Now(),
				"scheduler",
				"seedFromSitemaps",
				metadata.CauseNetworkFailure,
				err.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, sitemapURL)},
			)
			continue
		}
		for _, entry := range entries {
			normalized, normErr := s.normalizer.Normalize(entry.Loc, nil)
			if normErr != nil {
				continue
			}
			s.SubmitUrlForAdmission(ctx, normalized, frontier.SourceSitemap, 0, sitemapURL, entry.Priority)
		}
	}
}

func (s *Scheduler) emit(ctx context.Context, page artifact.PageArtifact) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, page); err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"Emitter.Emit",
			metadata.CauseStorageFailure,
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, page.URL)},
		)
	}
}

func (s *Scheduler) recordStoreError(action string, target url.URL, err failure.ClassifiedError) {
	s.metadataSink.RecordError(
		time.Now(),
		"scheduler",
		action,
		metadata.CauseStorageFailure,
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target.String())},
	)
}

func (s *Scheduler) buildSummary(start time.Time) artifact.Summary {
	kinds, robotsSkips, scopeSkips, queueFullSkips, _ := s.counters.snapshot()
	return artifact.Summary{
		PagesCrawled:     int(s.budgetTracker.Pages()),
		BytesFetched:     uint64(s.budgetTracker.Bytes()),
		ErrorsByKind:     kinds,
		SkippedByRobots:  robotsSkips,
		SkippedByScope:   scopeSkips,
		SkippedQueueFull: queueFullSkips,
		BudgetExceeded:   s.budgetTracker.Exceeded(),
		DurationSeconds:  time.Since(start).Seconds(),
	}
}

// terminalKind maps a classified fetch failure to its taxonomy kind,
// unwrapping retry exhaustion to the final attempt's error.
func terminalKind(err failure.ClassifiedError) failure.Kind {
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) {
		if retryErr.Cause == retry.ErrCancelled {
			return failure.KindCancelled
		}
		if retryErr.Last != nil {
			return terminalKind(retryErr.Last)
		}
		return failure.KindNetworkError
	}
	var kinded failure.Kinded
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return failure.KindNetworkError
}

func flattenHeaders(result *fetcher.FetchResult) map[string]string {
	headers := make(map[string]string, len(result.Headers()))
	for key, values := range result.Headers() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}

// hashableBody returns the decoded text when available, raw bytes for
// binary content, matching the ledger's "decoded body" contract.
func hashableBody(result *fetcher.FetchResult) []byte {
	if !result.Binary() && result.Text() != "" {
		return []byte(result.Text())
	}
	return result.Body()
}

// composeHTMLHandlers chains handlers over the same result, merging links
// and keeping the last non-nil payload.
func composeHTMLHandlers(handlers ...router.Handler) router.Handler {
	return func(ctx context.Context, result *fetcher.FetchResult) (router.HandlerOutput, failure.ClassifiedError) {
		var merged router.HandlerOutput
		for _, handler := range handlers {
			output, err := handler(ctx, result)
			if err != nil {
				return merged, err
			}
			merged.DiscoveredLinks = append(merged.DiscoveredLinks, output.DiscoveredLinks...)
			if output.Payload != nil {
				merged.Payload = output.Payload
			}
		}
		return merged, nil
	}
}

// strategyFromConfig builds the frontier ordering from config.
func strategyFromConfig(cfg config.Config) (frontier.Strategy, *config.ConfigError) {
	compile := func() ([]frontier.PatternRule, *config.ConfigError) {
		rules := make([]frontier.PatternRule, 0, len(cfg.PatternRules()))
		for _, rule := range cfg.PatternRules() {
			expr, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, &config.ConfigError{
					Message: fmt.Sprintf("bad pattern %q: %v", rule.Pattern, err),
					Cause:   config.ErrCauseInvalidValue,
					Field:   "patternRules",
				}
			}
			rules = append(rules, frontier.PatternRule{Expr: expr, Weight: rule.Weight})
		}
		return rules, nil
	}

	switch cfg.Strategy() {
	case frontier.StrategyBFS:
		return frontier.NewBreadthFirst(), nil
	case frontier.StrategyDFS:
		return frontier.NewDepthFirst(), nil
	case frontier.StrategySitemap:
		return frontier.NewSitemapPriority(), nil
	case frontier.StrategyPattern:
		rules, err := compile()
		if err != nil {
			return nil, err
		}
		return frontier.NewURLPattern(rules), nil
	case frontier.StrategyComposite:
		rules, err := compile()
		if err != nil {
			return nil, err
		}
		// Blend: declared sitemap priority and pattern scores dominate,
		// breadth keeps the walk shallow between equals.
		return frontier.NewComposite([]frontier.Weighted{
			{Scorer: frontier.NewSitemapPriority(), Weight: 1.0},
			{Scorer: frontier.NewURLPattern(rules), Weight: 1.0},
			{Scorer: frontier.NewBreadthFirst(), Weight: 0.1},
		}), nil
	default:
		return nil, &config.ConfigError{
			Message: fmt.Sprintf("unknown strategy %q", cfg.Strategy()),
			Cause:   config.ErrCauseInvalidValue,
			Field:   "strategy",
		}
	}
}

// Test helper methods

// FrontierVisitedCount returns the number of URLs in the frontier's visited
// set. This is a test helper method to verify frontier state.
func (s *Scheduler) FrontierVisitedCount() int {
	if s.frontier == nil {
		return 0
	}
	return s.frontier.VisitedCount()
}

// SetScope sets the scope predicate directly. This is a test helper method.
func (s *Scheduler) SetScope(scope normalize.Scope) {
	s.scope = scope
}

// DequeueFromFrontier dequeues a token from the frontier.
// This is a test helper method to verify frontier contents.
func (s *Scheduler) DequeueFromFrontier(ctx context.Context) (frontier.CrawlToken, bool) {
	if s.frontier == nil {
		return frontier.CrawlToken{}, false
	}
	return s.frontier.Dequeue(ctx)
}

// RunID exposes the run identifier.
func (s *Scheduler) RunID() string {
	return s.runID
}
