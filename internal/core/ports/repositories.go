package ports

import (
	"context"

	"playmesh/internal/core/domain"
)

type RoomRepository interface {
	// Create fails with domain.ErrRoomExists when a live record holds the code.
	Create(ctx context.Context, room *domain.Room) error
	// Get fails with domain.ErrRoomNotFound when no live record exists.
	Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, code domain.RoomCode) error
	// Touch refreshes the record TTL without rewriting it.
	Touch(ctx context.Context, code domain.RoomCode) error
}

type MailboxRepository interface {
	// Append never surfaces backpressure; past the queue bound the oldest
	// message is evicted.
	Append(ctx context.Context, code domain.RoomCode, seat domain.Seat, msg domain.SignalMessage) error
	// Drain is a destructive read: it returns all pending messages in
	// order and removes the entry. An idle mailbox yields an empty slice.
	Drain(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error)
	Purge(ctx context.Context, code domain.RoomCode, seat domain.Seat) error
}
