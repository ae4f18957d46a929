package scheduler

import (
	"sync"

	"github.com/rohmanhakim/crawlkit/internal/artifact"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

// CrawlingExecution is the terminal outcome of one crawl run.
type CrawlingExecution struct {
	Summary artifact.Summary
}

// counters aggregates per-run accounting shared by all workers.
type counters struct {
	mu               sync.Mutex
	errorsByKind     map[string]int
	skippedByRobots  int
	skippedByScope   int
	skippedQueueFull int
	totalErrors      int
}

func newCounters() *counters {
	return &counters{
		errorsByKind: make(map[string]int),
	}
}

func (c *counters) countError(kind failure.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByKind[string(kind)]++
	c.totalErrors++
}

func (c *counters) countRobotsSkip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedByRobots++
}

func (c *counters) countScopeSkip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedByScope++
}

func (c *counters) countQueueFull() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedQueueFull++
}

func (c *counters) snapshot() (map[string]int, int, int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make(map[string]int, len(c.errorsByKind))
	for k, v := range c.errorsByKind {
		kinds[k] = v
	}
	return kinds, c.skippedByRobots, c.skippedByScope, c.skippedQueueFull, c.totalErrors
}
