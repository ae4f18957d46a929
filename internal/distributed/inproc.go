package distributed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/crawlkit/internal/frontier"
)

/*
In-process broker

A mutex-guarded Broker used by tests and by single-machine
runs that still want the coordinator/worker split. Semantics match the
Redis broker: at-least-once with per-message visibility timeouts.
*/

type pendingEntry struct {
	payload  []byte
	deadline time.Time
}

type inprocTopic struct {
	mu      sync.Mutex
	ready   [][]byte
	pending map[string]pendingEntry
	// signal wakes one blocked consumer after a publish or requeue.
	signal chan struct{}
}

func newInprocTopic() *inprocTopic {
	return &inprocTopic{
		pending: make(map[string]pendingEntry),
		signal:  make(chan struct{}, 1),
	}
}

func (t *inprocTopic) publish(payload []byte) {
	t.mu.Lock()
	t.ready = append(t.ready, payload)
	t.mu.Unlock()
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

func (t *inprocTopic) consume(ctx context.Context, wait time.Duration, visibility time.Duration, now func() time.Time) ([]byte, string, bool) {
	deadline := now().Add(wait)
	for {
		t.mu.Lock()
		if len(t.ready) > 0 {
			payload := t.ready[0]
			t.ready = t.ready[1:]
			id := uuid.NewString()
			t.pending[id] = pendingEntry{payload: payload, deadline: now().Add(visibility)}
			t.mu.Unlock()
			return payload, id, true
		}
		t.mu.Unlock()

		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return nil, "", false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, "", false
		case <-t.signal:
			timer.Stop()
		case <-timer.C:
			return nil, "", false
		}
	}
}

func (t *inprocTopic) ack(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

func (t *inprocTopic) requeueExpired(now time.Time) int {
	t.mu.Lock()
	moved := 0
	for id, entry := range t.pending {
		if now.After(entry.deadline) {
			t.ready = append(t.ready, entry.payload)
			delete(t.pending, id)
			moved++
		}
	}
	t.mu.Unlock()
	if moved > 0 {
		select {
		case t.signal <- struct{}{}:
		default:
		}
	}
	return moved
}

type InprocBroker struct {
	tasks             *inprocTopic
	results           *inprocTopic
	visibilityTimeout time.Duration
	now               func() time.Time
}

var _ Broker = (*InprocBroker)(nil)

func NewInprocBroker(visibilityTimeout time.Duration) *InprocBroker {
	return &InprocBroker{
		tasks:             newInprocTopic(),
		results:           newInprocTopic(),
		visibilityTimeout: visibilityTimeout,
		now:               time.Now,
	}
}

func (b *InprocBroker) PublishTask(_ context.Context, task TaskMessage) error {
	payload, err := EncodeTask(task)
	if err != nil {
		return err
	}
	b.tasks.publish(payload)
	return nil
}

func (b *InprocBroker) PublishResult(_ context.Context, result ResultMessage) error {
	payload, err := EncodeResult(result)
	if err != nil {
		return err
	}
	b.results.publish(payload)
	return nil
}

func (b *InprocBroker) ConsumeTask(ctx context.Context, wait time.Duration) (Delivery[TaskMessage], bool, error) {
	payload, id, ok := b.tasks.consume(ctx, wait, b.visibilityTimeout, b.now)
	if !ok {
		return Delivery[TaskMessage]{}, false, nil
	}
	task, err := DecodeTask(payload)
	if err != nil {
		b.tasks.ack(id)
		return Delivery[TaskMessage]{}, false, err
	}
	return Delivery[TaskMessage]{
		Message: task,
		Ack: func(context.Context) error {
			b.tasks.ack(id)
			return nil
		},
	}, true, nil
}

func (b *InprocBroker) ConsumeResult(ctx context.Context, wait time.Duration) (Delivery[ResultMessage], bool, error) {
	payload, id, ok := b.results.consume(ctx, wait, b.visibilityTimeout, b.now)
	if !ok {
		return Delivery[ResultMessage]{}, false, nil
	}
	result, err := DecodeResult(payload)
	if err != nil {
		b.results.ack(id)
		return Delivery[ResultMessage]{}, false, err
	}
	return Delivery[ResultMessage]{
		Message: result,
		Ack: func(context.Context) error {
			b.results.ack(id)
			return nil
		},
	}, true, nil
}

func (b *InprocBroker) RequeueExpired(context.Context) (int, error) {
	now := b.now()
	return b.tasks.requeueExpired(now) + b.results.requeueExpired(now), nil
}

func (b *InprocBroker) Close() error {
	return nil
}

// InprocVisitedSet adapts the sharded set to the coordinator port.
type InprocVisitedSet struct {
	set *frontier.ShardedSet
}

var _ VisitedSet = (*InprocVisitedSet)(nil)

func NewInprocVisitedSet() *InprocVisitedSet {
	return &InprocVisitedSet{set: frontier.NewShardedSet()}
}

func (s *InprocVisitedSet) Add(_ context.Context, key string) (bool, error) {
	return s.set.Add(key), nil
}
