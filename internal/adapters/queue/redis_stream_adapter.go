package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	redisclient "github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
)

const bodyField = "body"

// RedisStreamAdapter implements the queue transport over a Redis Stream
// with a consumer group. Messages left unacknowledged are redelivered to
// the group, which gives the ingestion worker its at-least-once,
// failed-subset-only redelivery contract.
type RedisStreamAdapter struct {
	client   *redisclient.Client
	stream   string
	group    string
	consumer string
}

var _ providers.QueueProvider = (*RedisStreamAdapter)(nil)

// NewRedisStreamAdapter creates the adapter and ensures the consumer
// group exists.
func NewRedisStreamAdapter(ctx context.Context, client *redisclient.Client, stream, group, consumer string) (*RedisStreamAdapter, error) {
	err := client.Client().XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisStreamAdapter{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}, nil
}

// ReceiveBatch reads up to max messages: pending redeliveries first, then
// new entries. ReceiveCount reflects the group's delivery counter.
func (a *RedisStreamAdapter) ReceiveBatch(ctx context.Context, max int) ([]providers.QueueMessage, error) {
	if max <= 0 {
		max = 10
	}

	messages, err := a.claimPending(ctx, max)
	if err != nil {
		return nil, err
	}

	if len(messages) < max {
		fresh, err := a.readNew(ctx, max-len(messages))
		if err != nil {
			return nil, err
		}
		messages = append(messages, fresh...)
	}

	return messages, nil
}

func (a *RedisStreamAdapter) claimPending(ctx context.Context, max int) ([]providers.QueueMessage, error) {
	claimed, _, err := a.client.Client().XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   a.stream,
		Group:    a.group,
		Consumer: a.consumer,
		MinIdle:  30 * time.Second,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	return a.toQueueMessages(ctx, claimed)
}

func (a *RedisStreamAdapter) readNew(ctx context.Context, max int) ([]providers.QueueMessage, error) {
	streams, err := a.client.Client().XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    a.group,
		Consumer: a.consumer,
		Streams:  []string{a.stream, ">"},
		Count:    int64(max),
		Block:    time.Second,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var raw []redis.XMessage
	for _, s := range streams {
		raw = append(raw, s.Messages...)
	}
	return a.toQueueMessages(ctx, raw)
}

func (a *RedisStreamAdapter) toQueueMessages(ctx context.Context, raw []redis.XMessage) ([]providers.QueueMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	counts := a.deliveryCounts(ctx, raw)

	messages := make([]providers.QueueMessage, 0, len(raw))
	for _, m := range raw {
		body, _ := m.Values[bodyField].(string)
		count := counts[m.ID]
		if count == 0 {
			count = 1
		}
		messages = append(messages, providers.QueueMessage{
			ID:           m.ID,
			Body:         []byte(body),
			ReceiveCount: count,
		})
	}

	return messages, nil
}

func (a *RedisStreamAdapter) deliveryCounts(ctx context.Context, raw []redis.XMessage) map[string]int {
	counts := map[string]int{}
	pending, err := a.client.Client().XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: a.stream,
		Group:  a.group,
		Start:  raw[0].ID,
		End:    raw[len(raw)-1].ID,
		Count:  int64(len(raw)),
	}).Result()
	if err != nil {
		return counts
	}
	for _, p := range pending {
		counts[p.ID] = int(p.RetryCount)
	}
	return counts
}

// Ack acknowledges successfully processed messages so the group stops
// redelivering them.
func (a *RedisStreamAdapter) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := a.client.Client().XAck(ctx, a.stream, a.group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack messages: %w", err)
	}
	return nil
}

// Publish appends a message body to the stream. Used by schedulers and
// tests to enqueue refresh requests.
func (a *RedisStreamAdapter) Publish(ctx context.Context, body []byte) (string, error) {
	id, err := a.client.Client().XAdd(ctx, &redis.XAddArgs{
		Stream: a.stream,
		Values: map[string]interface{}{bodyField: string(body)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

// Close is a no-op; the underlying Redis client is owned by the caller.
func (a *RedisStreamAdapter) Close() error {
	return nil
}
