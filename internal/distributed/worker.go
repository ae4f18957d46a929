package distributed

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/internal/hashstore"
	"github.com/rohmanhakim/crawlkit/internal/links"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/normalize"
	"github.com/rohmanhakim/crawlkit/internal/robots"
	"github.com/rohmanhakim/crawlkit/internal/router"
	"github.com/rohmanhakim/crawlkit/pkg/limiter"
	"github.com/rohmanhakim/crawlkit/pkg/retry"
)

/*
Distributed worker

Runs the single-URL pipeline of the in-process scheduler, with the broker
standing in for the frontier. Every consumed task produces exactly one
published result: a success with discovered links, a terminal error, or a
robots skip. The coordinator relies on that one-to-one accounting to
detect quiescence, and its visited set makes redelivered tasks harmless.
*/

type Worker struct {
	broker        Broker
	robot         robots.Robot
	rateLimiter   limiter.RateLimiter
	htmlFetcher   fetcher.Fetcher
	contentRouter *router.ContentRouter
	metadataSink  metadata.MetadataSink
	emitter       artifact.Emitter
	retryParam    retry.RetryParam
	normalizer    normalize.URLNormalizer
	userAgent     string
	respectRobots bool
	concurrency   int
}

type WorkerDeps struct {
	Broker        Broker
	Robot         robots.Robot
	RateLimiter   limiter.RateLimiter
	Fetcher       fetcher.Fetcher
	Router        *router.ContentRouter
	MetadataSink  metadata.MetadataSink
	Emitter       artifact.Emitter
	RetryParam    retry.RetryParam
	UserAgent     string
	RespectRobots bool
	Concurrency   int
}

func NewWorker(deps WorkerDeps) *Worker {
	contentRouter := deps.Router
	if contentRouter == nil {
		contentRouter = router.NewContentRouter()
		contentRouter.Register("text/html", links.HTMLHandler())
	}
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		normalizer:    normalize.NewURLNormalizer(),
		broker:        deps.Broker,
		robot:         deps.Robot,
		rateLimiter:   deps.RateLimiter,
		htmlFetcher:   deps.Fetcher,
		contentRouter: contentRouter,
		metadataSink:  deps.MetadataSink,
		emitter:       deps.Emitter,
		retryParam:    deps.RetryParam,
		userAgent:     deps.UserAgent,
		respectRobots: deps.RespectRobots,
		concurrency:   concurrency,
	}
}

// Run consumes tasks until the context ends. Concurrency is bounded by the
// configured number of parallel consumers.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, ok, err := w.broker.ConsumeTask(ctx, time.Second)
		if err != nil {
			w.recordError("ConsumeTask", err)
			continue
		}
		if !ok {
			continue
		}

		result := w.processTask(ctx, delivery.Message)
		if ctx.Err() != nil {
			// Cancelled mid-task: leave the task un-acked so it is
			// redelivered after the visibility timeout.
			return
		}
		if publishErr := w.broker.PublishResult(ctx, result); publishErr != nil {
			w.recordError("PublishResult", publishErr)
			// Without a result the coordinator would wait forever; leave
			// the task un-acked for redelivery instead.
			continue
		}
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			w.recordError("AckTask", ackErr)
		}
	}
}

func (w *Worker) processTask(ctx context.Context, task TaskMessage) ResultMessage {
	result := ResultMessage{
		URL:       task.URL,
		Depth:     task.Depth,
		FetchedAt: time.Now(),
	}

	target, err := url.Parse(task.URL)
	if err != nil {
		result.Error = "malformed task url"
		return result
	}

	if w.respectRobots && !w.robot.Allowed(ctx, *target) {
		result.Error = "robots_disallowed"
		return result
	}

	if w.rateLimiter != nil {
		if err := w.rateLimiter.Await(ctx, target.Host); err != nil {
			result.Error = "cancelled"
			return result
		}
	}

	fetchParam := fetcher.NewFetchParam(*target, w.userAgent)
	fetchResult, fetchErr := w.htmlFetcher.Fetch(ctx, task.Depth, fetchParam, w.retryParam)
	if fetchErr != nil {
		result.Error = fetchErr.Error()
		return result
	}

	fetchResultURL := fetchResult.URL()
	result.FinalURL = fetchResultURL.String()
	result.HTTPStatus = fetchResult.Code()
	result.ContentType = fetchResult.ContentType()
	result.FetchedAt = fetchResult.FetchedAt()
	result.ContentHashHex = hashstore.Hash(fetchResult.Body())

	output, routeErr := w.contentRouter.Route(ctx, fetchResult.ContentType(), &fetchResult)
	if routeErr == nil {
		// Publish absolute canonical URLs; the coordinator only scopes and
		// dedupes, it has no base to resolve against.
		finalURL := fetchResult.URL()
		for _, raw := range output.DiscoveredLinks {
			resolved, normErr := w.normalizer.Normalize(raw, &finalURL)
			if normErr != nil {
				continue
			}
			result.Discovered = append(result.Discovered, resolved.String())
		}
	}

	if w.emitter != nil {
		w.emitArtifact(ctx, task, &fetchResult, output.Payload)
	}

	return result
}

func (w *Worker) emitArtifact(ctx context.Context, task TaskMessage, fetchResult *fetcher.FetchResult, payload any) {
	fetchResultURL := fetchResult.URL()
	page := artifact.PageArtifact{
		URL:            task.URL,
		FinalURL:       fetchResultURL.String(),
		HTTPStatus:     fetchResult.Code(),
		ContentType:    fetchResult.ContentType(),
		ContentHashHex: hashstore.Hash(fetchResult.Body()),
		FetchedAt:      fetchResult.FetchedAt(),
		Depth:          task.Depth,
		Body:           fetchResult.Body(),
		Attempts:       fetchResult.Attempts(),
		Payload:        payload,
	}
	if err := w.emitter.Emit(ctx, page); err != nil {
		w.recordError("Emit", err)
	}
}

func (w *Worker) recordError(action string, err error) {
	w.metadataSink.RecordError(
		time.Now(),
		"distributed",
		"Worker."+action,
		metadata.CauseNetworkFailure,
		err.Error(),
		[]metadata.Attribute{},
	)
}
