package artifact

import (
	"context"
	"sync"

	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

// Collector is an in-memory Emitter for tests and programmatic use.
type Collector struct {
	mu    sync.Mutex
	pages []PageArtifact
}

var _ Emitter = (*Collector)(nil)

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(_ context.Context, page PageArtifact) failure.ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = append(c.pages, page)
	return nil
}

// Pages returns a copy of everything emitted so far.
func (c *Collector) Pages() []PageArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := make([]PageArtifact, len(c.pages))
	copy(pages, c.pages)
	return pages
}

// Len returns the number of emitted artifacts.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}
