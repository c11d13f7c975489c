package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
	"playmesh/internal/infrastructure/monitoring"
	rlog "playmesh/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer is the push variant of the signaling transport: one
// duplex connection per seated peer. Inbound frames carry relay/leave
// requests; a per-connection pump drains the seat mailbox and pushes
// deliver frames, so websocket peers never poll.
type WebSocketServer struct {
	roomService ports.RoomService
	collector   *monitoring.PrometheusCollector

	connections map[string]*websocket.Conn
	mu          sync.RWMutex

	pingInterval    time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	deliverInterval time.Duration

	logger *zap.SugaredLogger
}

type ClientFrame struct {
	Op      string               `json:"op"` // "relay" or "leave"
	Message domain.SignalMessage `json:"message,omitempty"`
}

type ServerFrame struct {
	Type     string                 `json:"type"` // "deliver" or "error"
	Messages []domain.SignalMessage `json:"messages,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func NewWebSocketServer(roomService ports.RoomService, collector *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *WebSocketServer {
	return &WebSocketServer{
		roomService:     roomService,
		collector:       collector,
		connections:     make(map[string]*websocket.Conn),
		pingInterval:    30 * time.Second,
		readTimeout:     60 * time.Second,
		writeTimeout:    10 * time.Second,
		deliverInterval: 400 * time.Millisecond,
		logger:          logger,
	}
}

// SetDeliverInterval sets the mailbox drain cadence for push delivery.
func (s *WebSocketServer) SetDeliverInterval(interval time.Duration) {
	s.deliverInterval = interval
}

// SetPingInterval sets ping interval for WebSocket connections.
func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

func connKey(code domain.RoomCode, seat domain.Seat) string {
	return fmt.Sprintf("%s:%d", code, seat)
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := domain.RoomCode(r.URL.Query().Get("room"))
	seatNum, err := strconv.Atoi(r.URL.Query().Get("seat"))
	if code == "" || err != nil || seatNum < 1 || seatNum > domain.MaxSeats {
		http.Error(w, "room and seat query parameters are required", http.StatusBadRequest)
		return
	}
	seat := domain.Seat(seatNum)
	token := domain.Token(r.URL.Query().Get("peer_token"))

	// The seat must already be held; create/join happen over the REST API.
	if err := s.roomService.RejoinRoom(r.Context(), code, seat, token); err != nil {
		http.Error(w, "unknown room or seat", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	key := connKey(code, seat)
	s.mu.Lock()
	if existing, reconnect := s.connections[key]; reconnect && existing != nil {
		existing.Close()
		s.logger.Infow("closing old connection for reconnecting seat", "room_code", code, "seat", seat)
	}
	s.connections[key] = conn
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.WSOpened()
	}
	s.logger.Infow("peer connected via WebSocket", "room_code", code, "seat", seat)

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	// Connection outlives the upgrade request, so mailbox operations run
	// on a background context stamped with the seat's identity.
	connCtx := rlog.WithRoom(context.Background(), string(code), int(seat))

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()
	deliverTicker := time.NewTicker(s.deliverInterval)
	defer deliverTicker.Stop()

	frameChan := make(chan ClientFrame, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var frame ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			frameChan <- frame
		}
	}()

	for {
		select {
		case frame := <-frameChan:
			if err := s.handleFrame(connCtx, code, seat, frame); err != nil {
				s.logger.Infow("error handling frame", "room_code", code, "seat", seat, "error", err)
				s.writeFrame(conn, ServerFrame{Type: "error", Error: err.Error()})
			}

		case <-deliverTicker.C:
			messages, err := s.roomService.Poll(connCtx, code, seat)
			if err != nil {
				s.logger.Debugw("mailbox drain failed", "room_code", code, "seat", seat, "error", err)
				continue
			}
			if len(messages) == 0 {
				continue
			}
			if err := s.writeFrame(conn, ServerFrame{Type: "deliver", Messages: messages}); err != nil {
				s.logger.Infow("error delivering messages", "room_code", code, "seat", seat, "error", err)
				goto cleanup
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "room_code", code, "seat", seat, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading frame", "room_code", code, "seat", seat, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	if s.connections[key] == conn {
		delete(s.connections, key)
	}
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.WSClosed()
	}

	// Room membership survives a dropped socket; the peer's reconnection
	// controller decides whether to rejoin or leave.
	s.logger.Infow("peer disconnected", "room_code", code, "seat", seat)
}

func (s *WebSocketServer) handleFrame(ctx context.Context, code domain.RoomCode, seat domain.Seat, frame ClientFrame) error {
	switch frame.Op {
	case "relay":
		msg := frame.Message
		if msg.Type == "" {
			return fmt.Errorf("message type is required")
		}
		if msg.FromSeat != seat {
			return fmt.Errorf("from_seat mismatch: expected %d, got %d", seat, msg.FromSeat)
		}
		start := time.Now()
		if err := s.roomService.Relay(ctx, code, msg); err != nil {
			return fmt.Errorf("relay failed: %w", err)
		}
		if s.collector != nil {
			s.collector.MessageRelayed(string(msg.Type))
			s.collector.ObserveRelayLatency(time.Since(start))
		}
		return nil

	case "leave":
		if err := s.roomService.LeaveRoom(ctx, code, seat); err != nil {
			return err
		}
		if s.collector != nil {
			// A departing host takes the whole room with it.
			if seat == domain.HostSeat {
				s.collector.RoomClosed()
			} else {
				s.collector.PeerLeft()
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown op: %s", frame.Op)
	}
}

func (s *WebSocketServer) writeFrame(conn *websocket.Conn, frame ServerFrame) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(frame)
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	connectionCount := len(s.connections)
	s.mu.RUnlock()

	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": connectionCount,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *WebSocketServer) IsSeatConnected(code domain.RoomCode, seat domain.Seat) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.connections[connKey(code, seat)]
	return exists
}
