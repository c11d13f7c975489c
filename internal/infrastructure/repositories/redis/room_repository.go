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

// RedisRoomRepository stores room records as JSON values with a native
// key TTL. SETNX narrows the create race window, but callers must not
// assume create is atomic against the weaker backends.
type RedisRoomRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRoomRepository(client *redis.Client, ttl time.Duration) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "playmesh:room:",
		ttl:    ttl,
	}
}

func (r *RedisRoomRepository) roomKey(code domain.RoomCode) string {
	return r.prefix + string(code)
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.roomKey(room.Code), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !ok {
		return domain.ErrRoomExists
	}
	return nil
}

func (r *RedisRoomRepository) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(code)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// SET XX so an expired record is not resurrected; TTL restarts on write.
	ok, err := r.client.SetXX(ctx, r.roomKey(room.Code), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}
	if !ok {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, code domain.RoomCode) error {
	if err := r.client.Del(ctx, r.roomKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) Touch(ctx context.Context, code domain.RoomCode) error {
	ok, err := r.client.Expire(ctx, r.roomKey(code), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh room TTL: %w", err)
	}
	if !ok {
		return domain.ErrRoomNotFound
	}
	return nil
}
