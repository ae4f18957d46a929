package distributed

import (
	"context"
	"time"
)

// Delivery is one consumed message awaiting acknowledgement. An un-acked
// task reappears on the queue after the broker's visibility timeout.
type Delivery[T any] struct {
	Message T
	// Ack marks the message processed; it will not be redelivered.
	Ack func(ctx context.Context) error
}

// Broker is the transport replacing the in-process frontier in distributed
// mode. Tasks are delivered at-least-once; results need no redelivery
// guarantees beyond best effort, but implementations here give them the
// same treatment for symmetry.
type Broker interface {
	PublishTask(ctx context.Context, task TaskMessage) error
	// ConsumeTask blocks up to wait for a task; ok=false on timeout.
	ConsumeTask(ctx context.Context, wait time.Duration) (Delivery[TaskMessage], bool, error)
	PublishResult(ctx context.Context, result ResultMessage) error
	// ConsumeResult blocks up to wait for a result; ok=false on timeout.
	ConsumeResult(ctx context.Context, wait time.Duration) (Delivery[ResultMessage], bool, error)
	// RequeueExpired returns un-acked tasks whose visibility timeout has
	// lapsed to the tasks queue, and reports how many moved.
	RequeueExpired(ctx context.Context) (int, error)
	Close() error
}

// VisitedSet is the globally consistent URL dedup in distributed mode.
type VisitedSet interface {
	// Add inserts the key and reports whether it was already present.
	Add(ctx context.Context, key string) (wasPresent bool, err error)
}
