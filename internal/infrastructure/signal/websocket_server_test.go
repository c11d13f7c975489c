package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
	"playmesh/internal/core/services"
	"playmesh/internal/infrastructure/repositories/memory"
)

type wsFixture struct {
	server  *httptest.Server
	service ports.RoomService
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	rooms := memory.NewMemoryRoomRepository(time.Hour)
	t.Cleanup(rooms.Close)
	mailboxes := memory.NewMemoryMailboxRepository(50, 120*time.Second)
	t.Cleanup(mailboxes.Close)

	svc := services.NewRoomService(rooms, mailboxes, zap.NewNop().Sugar())

	wsServer := NewWebSocketServer(svc, nil, zap.NewNop().Sugar())
	wsServer.SetDeliverInterval(20 * time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &wsFixture{server: server, service: svc}
}

func (f *wsFixture) dial(t *testing.T, code domain.RoomCode, seat domain.Seat, token domain.Token) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("%s/ws?room=%s&seat=%d&peer_token=%s",
		strings.Replace(f.server.URL, "http", "ws", 1), code, seat, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketRejectsUnknownSeat(t *testing.T) {
	f := newWSFixture(t)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws?room=NOROOM&seat=2&peer_token=x"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	f := newWSFixture(t)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws?room=ABCDEF"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelayFrameIsDeliveredToTargetSeat(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateRoom(ctx, "ABCDEF")
	require.NoError(t, err)
	guest, err := f.service.JoinRoom(ctx, "ABCDEF")
	require.NoError(t, err)

	hostConn := f.dial(t, "ABCDEF", domain.HostSeat, created.HostToken)
	guestConn := f.dial(t, "ABCDEF", guest.Seat, guest.PeerToken)

	// The join notification is already pending for the host.
	hostConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame ServerFrame
	require.NoError(t, hostConn.ReadJSON(&frame))
	require.Equal(t, "deliver", frame.Type)
	require.NotEmpty(t, frame.Messages)
	assert.Equal(t, domain.MessagePlayerJoined, frame.Messages[0].Type)

	// Host relays an offer to the guest seat.
	offer, err := domain.NewSignalMessage(domain.MessageOffer, domain.HostSeat, guest.Seat, domain.OfferPayload{SDP: "v=0"})
	require.NoError(t, err)
	require.NoError(t, hostConn.WriteJSON(ClientFrame{Op: "relay", Message: offer}))

	guestConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, guestConn.ReadJSON(&frame))
	require.Equal(t, "deliver", frame.Type)
	require.Len(t, frame.Messages, 1)
	assert.Equal(t, domain.MessageOffer, frame.Messages[0].Type)
	assert.Equal(t, domain.HostSeat, frame.Messages[0].FromSeat)
}

func TestRelayFrameWithWrongFromSeatIsRejected(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateRoom(ctx, "ABCDEF")
	require.NoError(t, err)

	hostConn := f.dial(t, "ABCDEF", domain.HostSeat, created.HostToken)

	forged, err := domain.NewSignalMessage(domain.MessageOffer, 3, 2, domain.OfferPayload{SDP: "v=0"})
	require.NoError(t, err)
	require.NoError(t, hostConn.WriteJSON(ClientFrame{Op: "relay", Message: forged}))

	hostConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame ServerFrame
	require.NoError(t, hostConn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Error, "from_seat mismatch")
}

func TestLeaveFrameClosesRoomForHost(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateRoom(ctx, "ABCDEF")
	require.NoError(t, err)

	hostConn := f.dial(t, "ABCDEF", domain.HostSeat, created.HostToken)
	require.NoError(t, hostConn.WriteJSON(ClientFrame{Op: "leave"}))

	require.Eventually(t, func() bool {
		_, err := f.service.JoinRoom(ctx, "ABCDEF")
		return err == domain.ErrRoomNotFound
	}, 2*time.Second, 20*time.Millisecond)
}
