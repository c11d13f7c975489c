package ports

import (
	"context"

	"playmesh/internal/core/domain"
)

type RoomService interface {
	// CreateRoom generates a code when the caller passes "".
	CreateRoom(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error)
	JoinRoom(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error)
	// LeaveRoom is idempotent: leaving a dead room or an empty seat is a
	// no-op success.
	LeaveRoom(ctx context.Context, code domain.RoomCode, seat domain.Seat) error
	// RejoinRoom re-announces membership after a signaling reconnect.
	RejoinRoom(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error
	// Relay always accepts; delivery is best-effort by design.
	Relay(ctx context.Context, code domain.RoomCode, msg domain.SignalMessage) error
	Poll(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error)
}
