package peer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/infrastructure/signal"
)

// WSTransport upgrades signaling to a push channel. Room lifecycle
// requests still go over REST; inbound delivery and relay ride the
// websocket once it is up, so the peer never polls.
type WSTransport struct {
	rest *HTTPTransport

	conn   *websocket.Conn
	connMu sync.Mutex

	messages chan domain.SignalMessage
	errors   chan error
	cancel   context.CancelFunc

	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewWSTransport(baseURL string, requestTimeout time.Duration, logger *zap.SugaredLogger) *WSTransport {
	return &WSTransport{
		rest:         NewHTTPTransport(baseURL, DefaultPollInterval, requestTimeout, logger),
		messages:     make(chan domain.SignalMessage, 32),
		errors:       make(chan error, 1),
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (t *WSTransport) Create(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error) {
	return t.rest.Create(ctx, code)
}

func (t *WSTransport) Join(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error) {
	return t.rest.Join(ctx, code)
}

func (t *WSTransport) Rejoin(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	return t.rest.Rejoin(ctx, code, seat, token)
}

func (t *WSTransport) Relay(ctx context.Context, code domain.RoomCode, msg domain.SignalMessage) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn == nil {
		return t.rest.Relay(ctx, code, msg)
	}

	frame := signal.ClientFrame{Op: "relay", Message: msg}
	conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		// The socket is gone; fall back to REST so the message is not lost.
		t.logger.Warnw("websocket relay failed, falling back to REST", "room_code", code, "error", err)
		return t.rest.Relay(ctx, code, msg)
	}
	return nil
}

func (t *WSTransport) Leave(ctx context.Context, code domain.RoomCode, seat domain.Seat) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn != nil {
		conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		if err := conn.WriteJSON(signal.ClientFrame{Op: "leave"}); err == nil {
			return nil
		}
	}
	return t.rest.Leave(ctx, code, seat)
}

// Listen dials the push endpoint and starts the read pump. The seat
// must already be held; the server validates the token before upgrade.
func (t *WSTransport) Listen(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	if t.cancel != nil {
		t.cancel()
	}

	wsURL := fmt.Sprintf("%s/ws?room=%s&seat=%d&peer_token=%s", wsBaseURL(t.rest.baseURL), code, seat, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportLost, err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	t.connMu.Unlock()

	go t.readPump(pumpCtx, conn, code, seat)
	return nil
}

func (t *WSTransport) readPump(ctx context.Context, conn *websocket.Conn, code domain.RoomCode, seat domain.Seat) {
	defer conn.Close()

	for {
		var frame signal.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warnw("websocket read failed", "room_code", code, "seat", seat, "error", err)
			t.pushError(fmt.Errorf("%w: %v", domain.ErrTransportLost, err))
			return
		}

		switch frame.Type {
		case "deliver":
			for _, msg := range frame.Messages {
				select {
				case t.messages <- msg:
				case <-ctx.Done():
					return
				}
			}
		case "error":
			t.logger.Warnw("server rejected frame", "room_code", code, "seat", seat, "error", frame.Error)
		}
	}
}

func (t *WSTransport) Messages() <-chan domain.SignalMessage {
	return t.messages
}

func (t *WSTransport) Errors() <-chan error {
	return t.errors
}

func (t *WSTransport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

func (t *WSTransport) pushError(err error) {
	select {
	case t.errors <- err:
	default:
	}
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
