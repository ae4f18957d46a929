package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

/*
Redis broker

Topics are Redis lists. Consuming moves a message into a per-topic pending
area keyed by a delivery id: the payload lives in a hash and the id in a
sorted set scored by its visibility deadline. Ack deletes both; the sweep
requeues anything whose deadline passed. This yields at-least-once delivery
with per-message visibility timeouts.
*/

type RedisBroker struct {
	client            *redis.Client
	tasksKey          string
	resultsKey        string
	visibilityTimeout time.Duration
	now               func() time.Time
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(addr, tasksTopic, resultsTopic string, visibilityTimeout time.Duration) *RedisBroker {
	return &RedisBroker{
		client:            redis.NewClient(&redis.Options{Addr: addr}),
		tasksKey:          tasksTopic,
		resultsKey:        resultsTopic,
		visibilityTimeout: visibilityTimeout,
		now:               time.Now,
	}
}

// NewRedisBrokerWithClient injects a client for testing.
func NewRedisBrokerWithClient(client *redis.Client, tasksTopic, resultsTopic string, visibilityTimeout time.Duration) *RedisBroker {
	return &RedisBroker{
		client:            client,
		tasksKey:          tasksTopic,
		resultsKey:        resultsTopic,
		visibilityTimeout: visibilityTimeout,
		now:               time.Now,
	}
}

func (b *RedisBroker) pendingZKey(topic string) string { return topic + ":pending" }
func (b *RedisBroker) pendingHKey(topic string) string { return topic + ":payloads" }

func (b *RedisBroker) PublishTask(ctx context.Context, task TaskMessage) error {
	payload, err := EncodeTask(task)
	if err != nil {
		return err
	}
	return b.client.LPush(ctx, b.tasksKey, payload).Err()
}

func (b *RedisBroker) PublishResult(ctx context.Context, result ResultMessage) error {
	payload, err := EncodeResult(result)
	if err != nil {
		return err
	}
	return b.client.LPush(ctx, b.resultsKey, payload).Err()
}

func (b *RedisBroker) ConsumeTask(ctx context.Context, wait time.Duration) (Delivery[TaskMessage], bool, error) {
	raw, ok, err := b.consume(ctx, b.tasksKey, wait)
	if err != nil || !ok {
		return Delivery[TaskMessage]{}, false, err
	}
	task, decodeErr := DecodeTask([]byte(raw.payload))
	if decodeErr != nil {
		// Poison message: ack it away so it cannot loop forever.
		_ = raw.ack(ctx)
		return Delivery[TaskMessage]{}, false, decodeErr
	}
	return Delivery[TaskMessage]{Message: task, Ack: raw.ack}, true, nil
}

func (b *RedisBroker) ConsumeResult(ctx context.Context, wait time.Duration) (Delivery[ResultMessage], bool, error) {
	raw, ok, err := b.consume(ctx, b.resultsKey, wait)
	if err != nil || !ok {
		return Delivery[ResultMessage]{}, false, err
	}
	result, decodeErr := DecodeResult([]byte(raw.payload))
	if decodeErr != nil {
		_ = raw.ack(ctx)
		return Delivery[ResultMessage]{}, false, decodeErr
	}
	return Delivery[ResultMessage]{Message: result, Ack: raw.ack}, true, nil
}

type rawDelivery struct {
	payload string
	ack     func(ctx context.Context) error
}

func (b *RedisBroker) consume(ctx context.Context, topic string, wait time.Duration) (rawDelivery, bool, error) {
	values, err := b.client.BRPop(ctx, wait, topic).Result()
	if errors.Is(err, redis.Nil) {
		return rawDelivery{}, false, nil
	}
	if err != nil {
		return rawDelivery{}, false, err
	}
	if len(values) != 2 {
		return rawDelivery{}, false, fmt.Errorf("unexpected BRPOP reply length %d", len(values))
	}
	payload := values[1]

	deliveryID := uuid.NewString()
	deadline := float64(b.now().Add(b.visibilityTimeout).Unix())

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.pendingHKey(topic), deliveryID, payload)
	pipe.ZAdd(ctx, b.pendingZKey(topic), redis.Z{Score: deadline, Member: deliveryID})
	if _, err := pipe.Exec(ctx); err != nil {
		// Could not park the message; push it back so it is not lost.
		b.client.LPush(ctx, topic, payload)
		return rawDelivery{}, false, err
	}

	ack := func(ackCtx context.Context) error {
		pipe := b.client.TxPipeline()
		pipe.ZRem(ackCtx, b.pendingZKey(topic), deliveryID)
		pipe.HDel(ackCtx, b.pendingHKey(topic), deliveryID)
		_, err := pipe.Exec(ackCtx)
		return err
	}

	return rawDelivery{payload: payload, ack: ack}, true, nil
}

// RequeueExpired sweeps both topics' pending areas.
func (b *RedisBroker) RequeueExpired(ctx context.Context) (int, error) {
	moved := 0
	for _, topic := range []string{b.tasksKey, b.resultsKey} {
		n, err := b.requeueTopic(ctx, topic)
		if err != nil {
			return moved, err
		}
		moved += n
	}
	return moved, nil
}

func (b *RedisBroker) requeueTopic(ctx context.Context, topic string) (int, error) {
	now := fmt.Sprintf("%d", b.now().Unix())
	expired, err := b.client.ZRangeByScore(ctx, b.pendingZKey(topic), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, deliveryID := range expired {
		payload, err := b.client.HGet(ctx, b.pendingHKey(topic), deliveryID).Result()
		if errors.Is(err, redis.Nil) {
			b.client.ZRem(ctx, b.pendingZKey(topic), deliveryID)
			continue
		}
		if err != nil {
			return moved, err
		}
		pipe := b.client.TxPipeline()
		pipe.LPush(ctx, topic, payload)
		pipe.ZRem(ctx, b.pendingZKey(topic), deliveryID)
		pipe.HDel(ctx, b.pendingHKey(topic), deliveryID)
		if _, err := pipe.Exec(ctx); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// RedisVisitedSet is the coordinator's globally consistent visited set.
type RedisVisitedSet struct {
	client *redis.Client
	key    string
}

var _ VisitedSet = (*RedisVisitedSet)(nil)

func NewRedisVisitedSet(client *redis.Client, key string) *RedisVisitedSet {
	return &RedisVisitedSet{client: client, key: key}
}

func (s *RedisVisitedSet) Add(ctx context.Context, key string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, key).Result()
	if err != nil {
		return false, err
	}
	return added == 0, nil
}
