package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
)

// RedisMailboxRepository keeps each (room, seat) mailbox as a Redis list.
// RPUSH+LTRIM bounds the queue with oldest-first eviction; the entry TTL
// restarts on every append. Drain reads and deletes in one pipeline so a
// message is delivered at most once per poll cycle.
type RedisMailboxRepository struct {
	client  *redis.Client
	prefix  string
	limit   int
	ttl     time.Duration
	onEvict func(count int)
}

func NewRedisMailboxRepository(client *redis.Client, limit int, ttl time.Duration) *RedisMailboxRepository {
	return &RedisMailboxRepository{
		client: client,
		prefix: "playmesh:mailbox:",
		limit:  limit,
		ttl:    ttl,
	}
}

var _ ports.MailboxRepository = (*RedisMailboxRepository)(nil)

// OnEvict registers a callback reporting how many messages a full
// mailbox dropped on append. Set once during wiring, before traffic.
func (r *RedisMailboxRepository) OnEvict(fn func(count int)) {
	r.onEvict = fn
}

func (r *RedisMailboxRepository) mailboxKey(code domain.RoomCode, seat domain.Seat) string {
	return fmt.Sprintf("%s%s:%d", r.prefix, code, seat)
}

func (r *RedisMailboxRepository) Append(ctx context.Context, code domain.RoomCode, seat domain.Seat, msg domain.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := r.mailboxKey(code, seat)
	pipe := r.client.Pipeline()
	pushCmd := pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-r.limit), -1)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to mailbox: %w", err)
	}

	// RPUSH reports the pre-trim length, so anything past the bound is
	// what LTRIM just discarded.
	if evicted := pushCmd.Val() - int64(r.limit); evicted > 0 && r.onEvict != nil {
		r.onEvict(int(evicted))
	}
	return nil
}

func (r *RedisMailboxRepository) Drain(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error) {
	key := r.mailboxKey(code, seat)

	pipe := r.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to drain mailbox: %w", err)
	}

	raw := rangeCmd.Val()
	messages := make([]domain.SignalMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.SignalMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// Skip entries that fail to decode; the queue is advisory.
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *RedisMailboxRepository) Purge(ctx context.Context, code domain.RoomCode, seat domain.Seat) error {
	if err := r.client.Del(ctx, r.mailboxKey(code, seat)).Err(); err != nil {
		return fmt.Errorf("failed to purge mailbox: %w", err)
	}
	return nil
}
