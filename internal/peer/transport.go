// Package peer implements the client side of the relay: signaling
// transports, the reconnection controller and the session that owns a
// single peer's connections, channels and codec state.
package peer

import (
	"context"

	"playmesh/internal/core/domain"
)

// Transport is the client side of the signaling surface. The negotiation
// layer above must not depend on whether delivery is driven by a
// fixed-interval poll or an always-open push channel.
type Transport interface {
	Create(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error)
	Join(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error)
	Rejoin(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error
	Relay(ctx context.Context, code domain.RoomCode, msg domain.SignalMessage) error
	Leave(ctx context.Context, code domain.RoomCode, seat domain.Seat) error

	// Listen starts inbound delivery for the seat. Received messages are
	// fanned into Messages until the context is cancelled or the
	// transport fails, in which case ErrTransportLost is pushed to
	// Errors and delivery stops until Listen is called again.
	Listen(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error
	Messages() <-chan domain.SignalMessage
	Errors() <-chan error
	Close() error
}
