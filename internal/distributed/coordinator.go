package distributed

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/internal/budget"
	"github.com/rohmanhakim/crawlkit/internal/config"
	"github.com/rohmanhakim/crawlkit/internal/metadata"
	"github.com/rohmanhakim/crawlkit/internal/normalize"
)

/*
Coordinator

The single control-plane process of a distributed crawl. It publishes the
seed, consumes results, feeds newly discovered in-scope URLs back into the
tasks topic, and owns the only two pieces of globally consistent state: the
visited set and the budget.

Workers are stateless consumers; a worker crash just means its un-acked
tasks resurface after the visibility timeout.

Every consumed task produces exactly one result (success, error, or skip),
so the coordinator can detect quiescence by balancing published tasks
against consumed results.
*/

type Coordinator struct {
	cfg          config.Config
	broker       Broker
	visited      VisitedSet
	budget       *budget.Tracker
	metadataSink metadata.MetadataSink
	normalizer   normalize.URLNormalizer
	scope        normalize.Scope

	// outstanding counts published tasks whose result has not arrived.
	outstanding atomic.Int64

	counters coordinatorCounters
}

type coordinatorCounters struct {
	scopeSkips  atomic.Int64
	errorsSeen  atomic.Int64
	pagesSeen   atomic.Int64
	requeued    atomic.Int64
	dupeResults atomic.Int64
}

func NewCoordinator(
	cfg config.Config,
	broker Broker,
	visited VisitedSet,
	budgetTracker *budget.Tracker,
	metadataSink metadata.MetadataSink,
) *Coordinator {
	return &Coordinator{
		cfg:          cfg,
		broker:       broker,
		visited:      visited,
		budget:       budgetTracker,
		metadataSink: metadataSink,
		normalizer:   normalize.NewURLNormalizer(),
	}
}

// Run drives the crawl until the task/result flow drains, the budget
// trips, or the context ends.
func (c *Coordinator) Run(ctx context.Context) (artifact.Summary, error) {
	start := time.Now()

	startURL := c.cfg.StartURL()
	seedCanonical, err := c.normalizer.Normalize(startURL.String(), nil)
	if err != nil {
		return artifact.Summary{}, err
	}
	c.scope = normalize.NewScope(seedCanonical, c.cfg.SameHostOnly(), c.cfg.SamePathOnly())

	if publishErr := c.publishTask(ctx, seedCanonical, 0, "", 0); publishErr != nil {
		return artifact.Summary{}, publishErr
	}

	sweep := time.NewTicker(c.cfg.VisibilityTimeout())
	defer sweep.Stop()

	for {
		if ctx.Err() != nil {
			return c.summary(start), ctx.Err()
		}
		if c.budget.Exceeded() {
			return c.summary(start), nil
		}
		// At-least-once delivery can duplicate results, so the balance may
		// briefly undershoot zero; both mean the flow has drained.
		if c.outstanding.Load() <= 0 {
			return c.summary(start), nil
		}

		select {
		case <-sweep.C:
			moved, sweepErr := c.broker.RequeueExpired(ctx)
			if sweepErr == nil && moved > 0 {
				c.counters.requeued.Add(int64(moved))
			}
		default:
		}

		delivery, ok, consumeErr := c.broker.ConsumeResult(ctx, time.Second)
		if consumeErr != nil {
			c.recordError("ConsumeResult", consumeErr)
			continue
		}
		if !ok {
			continue
		}

		c.handleResult(ctx, delivery.Message)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			c.recordError("AckResult", ackErr)
		}
	}
}

func (c *Coordinator) handleResult(ctx context.Context, result ResultMessage) {
	c.outstanding.Add(-1)

	if result.Error != "" {
		c.counters.errorsSeen.Add(1)
	} else if result.HTTPStatus >= 200 && result.HTTPStatus < 300 {
		c.counters.pagesSeen.Add(1)
		c.budget.Record(1, 0)
	}

	if c.budget.Exceeded() {
		// Stop growing the frontier; in-flight workers drain on their own.
		return
	}

	for _, raw := range result.Discovered {
		normalized, err := c.normalizer.Normalize(raw, nil)
		if err != nil {
			continue
		}
		if result.Depth+1 > c.cfg.MaxDepth() {
			continue
		}
		if !c.scope.InScope(normalized) {
			c.counters.scopeSkips.Add(1)
			continue
		}
		if publishErr := c.publishTask(ctx, normalized, result.Depth+1, result.URL, 0); publishErr != nil {
			c.recordError("PublishTask", publishErr)
		}
	}
}

// publishTask runs the idempotence gate: the visited set admits each
// canonical URL exactly once across the whole cluster.
func (c *Coordinator) publishTask(ctx context.Context, target url.URL, depth int, from string, priority float64) error {
	wasPresent, err := c.visited.Add(ctx, target.String())
	if err != nil {
		return err
	}
	if wasPresent {
		c.counters.dupeResults.Add(1)
		return nil
	}

	task := TaskMessage{
		URL:            target.String(),
		Depth:          depth,
		DiscoveredFrom: from,
		PriorityScore:  priority,
		InsertedAt:     time.Now(),
	}
	if err := c.broker.PublishTask(ctx, task); err != nil {
		return err
	}
	c.outstanding.Add(1)
	return nil
}

func (c *Coordinator) summary(start time.Time) artifact.Summary {
	return artifact.Summary{
		PagesCrawled:    int(c.counters.pagesSeen.Load()),
		BytesFetched:    uint64(c.budget.Bytes()),
		ErrorsByKind:    map[string]int{"worker_reported": int(c.counters.errorsSeen.Load())},
		SkippedByScope:  int(c.counters.scopeSkips.Load()),
		BudgetExceeded:  c.budget.Exceeded(),
		DurationSeconds: time.Since(start).Seconds(),
	}
}

func (c *Coordinator) recordError(action string, err error) {
	c.metadataSink.RecordError(
		time.Now(),
		"distributed",
		"Coordinator."+action,
		metadata.CauseNetworkFailure,
		err.Error(),
		[]metadata.Attribute{},
	)
}
