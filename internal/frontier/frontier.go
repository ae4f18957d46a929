package frontier

import (
	"context"
	"fmt"
	"sync"
	"time"
)

/*
Frontier Responsibilities
- Maintain strategy-defined ordering
- Deduplicate URLs
- Track crawl state: every URL is in exactly one of {queued, visited, in-flight}
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- robots
	- rate limiting
	- storage

It is a data structure + policy module, not a pipeline executor.

State transitions:
  queued    → in-flight  at Dequeue
  in-flight → visited    at MarkCompleted (success or terminal failure)
A cancelled in-flight URL is released back out of in-flight without joining
the visited set.
*/

// defaultIdleTimeout bounds how long Dequeue blocks on an empty queue
// before returning empty, letting the worker pool check for quiescence.
const defaultIdleTimeout = time.Second

type Frontier struct {
	mu       sync.Mutex
	pq       *priorityQueue
	queued   Set[string]
	inFlight Set[string]
	visited  *ShardedSet

	strategy    Strategy
	maxSize     int // 0 = unbounded
	idleTimeout time.Duration
	seq         uint64
	closed      bool

	// signal wakes one blocked Dequeue after a Submit or Close.
	signal chan struct{}
}

func NewFrontier(strategy Strategy) *Frontier {
	return &Frontier{
		pq:          newPriorityQueue(strategy),
		queued:      NewSet[string](),
		inFlight:    NewSet[string](),
		visited:     NewShardedSet(),
		strategy:    strategy,
		idleTimeout: defaultIdleTimeout,
		signal:      make(chan struct{}, 1),
	}
}

// NewBoundedFrontier caps the number of queued entries. A full queue
// rejects submissions with ErrCauseQueueFull.
func NewBoundedFrontier(strategy Strategy, maxSize int, idleTimeout time.Duration) *Frontier {
	f := NewFrontier(strategy)
	f.maxSize = maxSize
	if idleTimeout > 0 {
		f.idleTimeout = idleTimeout
	}
	return f
}

// Submit admits a candidate into the queue.
// No-op (duplicate error) when the URL is already queued, in flight, or
// visited: URL-level dedup against every state at once.
func (f *Frontier) Submit(candidate CrawlAdmissionCandidate) *FrontierError {
	target := candidate.TargetURL()
	key := target.String()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return &FrontierError{
			Message: "frontier is closed",
			Cause:   ErrCauseClosed,
		}
	}
	if f.queued.Contains(key) || f.inFlight.Contains(key) || f.visited.Contains(key) {
		return &FrontierError{
			Message: fmt.Sprintf("url already tracked: %s", key),
			Cause:   ErrCauseDuplicate,
		}
	}
	if f.maxSize > 0 && f.pq.Len() >= f.maxSize {
		return &FrontierError{
			Message: fmt.Sprintf("queue is at capacity %d", f.maxSize),
			Cause:   ErrCauseQueueFull,
		}
	}

	meta := candidate.DiscoveryMetadata()
	f.seq++
	entry := &Entry{
		url:            target,
		depth:          meta.Depth(),
		discoveredFrom: meta.DiscoveredFrom(),
		priorityScore:  meta.PriorityScore(),
		insertedAt:     time.Now(),
		seq:            f.seq,
	}
	f.pq.push(entry)
	f.queued.Add(key)

	select {
	case f.signal <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the highest-priority entry, moving its URL from queued to
// in-flight. On an empty queue it blocks up to the idle timeout, then
// returns ok=false so the caller can decide whether the crawl is done.
// Cancellation returns ok=false immediately.
func (f *Frontier) Dequeue(ctx context.Context) (CrawlToken, bool) {
	for {
		f.mu.Lock()
		if entry, ok := f.pq.pop(); ok {
			key := entry.url.String()
			f.queued.Remove(key)
			f.inFlight.Add(key)
			f.mu.Unlock()
			return CrawlToken{
				url:            entry.url,
				depth:          entry.depth,
				discoveredFrom: entry.discoveredFrom,
				priorityScore:  entry.priorityScore,
			}, true
		}
		closed := f.closed
		f.mu.Unlock()

		if closed {
			// Pass the wake-up on so every blocked Dequeue observes Close.
			select {
			case f.signal <- struct{}{}:
			default:
			}
			return CrawlToken{}, false
		}

		idle := time.NewTimer(f.idleTimeout)
		select {
		case <-ctx.Done():
			idle.Stop()
			return CrawlToken{}, false
		case <-f.signal:
			idle.Stop()
		case <-idle.C:
			return CrawlToken{}, false
		}
	}
}

// MarkCompleted transitions a URL from in-flight to visited. Called on
// fetch completion, success or terminal failure.
func (f *Frontier) MarkCompleted(token CrawlToken) {
	key := token.url.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight.Remove(key)
	f.visited.Add(key)
}

// Release drops a URL out of in-flight without visiting it. Used on
// cancellation so an aborted fetch does not poison the visited set.
func (f *Frontier) Release(token CrawlToken) {
	key := token.url.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight.Remove(key)
}

// Drain empties the queue without processing, clearing the queued set.
// Used after a budget stop.
func (f *Frontier) Drain() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	drained := 0
	for {
		entry, ok := f.pq.pop()
		if !ok {
			break
		}
		f.queued.Remove(entry.url.String())
		drained++
	}
	return drained
}

// Close wakes all blocked Dequeues once the queue empties; subsequent
// submissions are rejected.
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

func (f *Frontier) InFlightCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight.Size()
}

func (f *Frontier) VisitedCount() int {
	return f.visited.Size()
}

// WasVisited reports whether the canonical URL completed a crawl cycle.
func (f *Frontier) WasVisited(key string) bool {
	return f.visited.Contains(key)
}

func (f *Frontier) Strategy() Strategy {
	return f.strategy
}
