package peer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
)

type fakeEngine struct {
	mu      sync.Mutex
	loaded  []byte
	downs   []int
	ups     []int
	frames  func(frame []byte)
	samples func(left, right float32)
}

func (e *fakeEngine) LoadImage(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = data
	return nil
}

func (e *fakeEngine) SetFrameSink(sink func(frame []byte)) { e.frames = sink }

func (e *fakeEngine) SetAudioSink(sink func(left, right float32)) { e.samples = sink }

func (e *fakeEngine) ButtonDown(seat domain.Seat, button int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.downs = append(e.downs, button)
}

func (e *fakeEngine) ButtonUp(seat domain.Seat, button int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ups = append(e.ups, button)
}

func (e *fakeEngine) downCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.downs)
}

func newTestSession(t *testing.T, tr Transport, cfg SessionConfig) *Session {
	t.Helper()
	return NewSession(tr, cfg, zap.NewNop().Sugar())
}

func runSession(t *testing.T, s *Session) (done chan error, cancel context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done, cancel
}

func mustSignal(t *testing.T, mt domain.MessageType, from, to domain.Seat, payload interface{}) domain.SignalMessage {
	t.Helper()
	msg, err := domain.NewSignalMessage(mt, from, to, payload)
	require.NoError(t, err)
	return msg
}

func TestHostOffersWhenGuestJoins(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Host(context.Background(), "ROOM01")
	require.NoError(t, err)

	done, cancel := runSession(t, s)
	defer cancel()

	tr.messages <- mustSignal(t, domain.MessagePlayerJoined, domain.BroadcastSeat, domain.HostSeat, domain.SeatPayload{Seat: 2})

	require.Eventually(t, func() bool {
		return len(tr.relayedByType(domain.MessageOffer)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	offer := tr.relayedByType(domain.MessageOffer)[0]
	assert.Equal(t, domain.HostSeat, offer.FromSeat)
	assert.Equal(t, domain.Seat(2), offer.ToSeat)

	cancel()
	<-done
}

func TestRoomClosedEndsSessionCleanly(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Join(context.Background(), "ROOM01")
	require.NoError(t, err)

	done, cancel := runSession(t, s)
	defer cancel()

	tr.messages <- mustSignal(t, domain.MessageRoomClosed, domain.BroadcastSeat, 2, nil)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end on room-closed")
	}
}

func TestMailboxGameEventDrivesEngine(t *testing.T) {
	tr := newFakeTransport()
	engine := &fakeEngine{}
	s := newTestSession(t, tr, SessionConfig{Engine: engine})

	_, err := s.Host(context.Background(), "ROOM01")
	require.NoError(t, err)

	done, cancel := runSession(t, s)
	defer cancel()

	tr.messages <- mustSignal(t, domain.MessageGameEvent, 2, domain.HostSeat, domain.GameEventPayload{
		Seat: 2, Button: 7, Action: "down",
	})

	require.Eventually(t, func() bool {
		return engine.downCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestGuestInputFallsBackToMailbox(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Join(context.Background(), "ROOM01")
	require.NoError(t, err)

	// No direct channel is open, so the input rides the relay.
	require.NoError(t, s.SendInput(context.Background(), 3, true))

	events := tr.relayedByType(domain.MessageGameEvent)
	require.Len(t, events, 1)
	assert.Equal(t, domain.Seat(2), events[0].FromSeat)
	assert.Equal(t, domain.HostSeat, events[0].ToSeat)
}

func TestTerminalOutageEndsSession(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Join(context.Background(), "ROOM01")
	require.NoError(t, err)

	s.reconnect.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	tr.rejoinErrs = []error{domain.ErrRoomNotFound}

	done, cancel := runSession(t, s)
	defer cancel()

	tr.errors <- domain.ErrTransportLost

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not surface the terminal outage")
	}
}

func TestLoadGameIsHostOnly(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Join(context.Background(), "ROOM01")
	require.NoError(t, err)

	assert.Error(t, s.LoadGame(context.Background(), "game.bin"))
}

func TestLatencyAbsentBeforeFirstPong(t *testing.T) {
	tr := newFakeTransport()
	s := newTestSession(t, tr, SessionConfig{})

	_, err := s.Host(context.Background(), "ROOM01")
	require.NoError(t, err)

	_, ok := s.Latency(2)
	assert.False(t, ok)
}
