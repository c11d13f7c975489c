package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
	"playmesh/internal/mirror"
	"playmesh/internal/peer/negotiation"
	"playmesh/pkg/retry"
)

// audioFlushSamples is how many buffered samples trigger an audio packet.
const audioFlushSamples = 512

// SessionConfig carries the pieces a session needs beyond its transport.
// Engine and Blobs are host-side; OnFrame and OnAudio are guest-side
// render callbacks.
type SessionConfig struct {
	Engine  ports.GameEngine
	Blobs   ports.BlobStore
	OnFrame func(frame []byte)
	OnAudio func(samples []float32)

	WebRTC          webrtc.Configuration
	Reconnect       retry.Config
	LatencyInterval time.Duration
}

// Session is one peer's seat at the table: it owns the signaling
// transport, the negotiator, the open data channels and the codec state,
// and runs the event loop that ties them together.
type Session struct {
	transport Transport
	reconnect *ReconnectController
	cfg       SessionConfig
	logger    *zap.SugaredLogger

	code   domain.RoomCode
	seat   domain.Seat
	token  domain.Token
	isHost bool

	negotiator *negotiation.Negotiator
	probe      *mirror.LatencyProbe
	encoder    *mirror.FrameEncoder
	decoder    *mirror.FrameDecoder

	mu       sync.RWMutex
	channels map[domain.Seat]*webrtc.DataChannel

	audioMu  sync.Mutex
	audioBuf []float32
}

func NewSession(transport Transport, cfg SessionConfig, logger *zap.SugaredLogger) *Session {
	if cfg.Reconnect.MaxAttempts == 0 {
		cfg.Reconnect = retry.DefaultConfig()
	}
	if cfg.LatencyInterval <= 0 {
		cfg.LatencyInterval = mirror.DefaultProbeInterval
	}
	return &Session{
		transport: transport,
		reconnect: NewReconnectController(transport, cfg.Reconnect, logger),
		cfg:       cfg,
		logger:    logger,
		probe:     mirror.NewLatencyProbe(),
		encoder:   mirror.NewFrameEncoder(),
		decoder:   mirror.NewFrameDecoder(),
		channels:  make(map[domain.Seat]*webrtc.DataChannel),
	}
}

// Host creates the room (empty code means "generate one") and takes
// seat 1. The engine's frame and audio sinks start feeding the mirror
// encoders immediately; frames go nowhere until a channel opens.
func (s *Session) Host(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error) {
	result, err := s.transport.Create(ctx, code)
	if err != nil {
		return nil, err
	}
	s.start(result.Code, result.Seat, result.HostToken, true)

	if s.cfg.Engine != nil {
		s.cfg.Engine.SetFrameSink(s.mirrorFrame)
		s.cfg.Engine.SetAudioSink(s.mirrorAudio)
	}

	if err := s.transport.Listen(ctx, s.code, s.seat, s.token); err != nil {
		return nil, err
	}
	s.logger.Infow("hosting room", "room_code", s.code)
	return result, nil
}

// Join takes the lowest free guest seat in an existing room.
func (s *Session) Join(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error) {
	result, err := s.transport.Join(ctx, code)
	if err != nil {
		return nil, err
	}
	s.start(code, result.Seat, result.PeerToken, false)

	if err := s.transport.Listen(ctx, s.code, s.seat, s.token); err != nil {
		return nil, err
	}
	s.logger.Infow("joined room", "room_code", s.code, "seat", s.seat)
	return result, nil
}

func (s *Session) start(code domain.RoomCode, seat domain.Seat, token domain.Token, isHost bool) {
	s.code = code
	s.seat = seat
	s.token = token
	s.isHost = isHost

	s.negotiator = negotiation.NewNegotiator(seat, isHost, s.cfg.WebRTC, s.sendSignal, s.logger)
	s.negotiator.OnChannel(s.channelOpen)
}

func (s *Session) sendSignal(ctx context.Context, msg domain.SignalMessage) error {
	return s.transport.Relay(ctx, s.code, msg)
}

// Run is the session event loop. It returns nil when the room closes
// normally and ErrDisconnected when reconnection gives up.
func (s *Session) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(s.cfg.LatencyInterval)
	defer pingTicker.Stop()
	defer s.teardown()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The controller owns the transport's error channel for the whole
	// session; it only reports back when an outage is terminal.
	supervised := make(chan error, 1)
	go func() {
		supervised <- s.reconnect.Supervise(runCtx, s.code, s.seat, s.token)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-s.transport.Messages():
			closed, err := s.handleSignal(ctx, msg)
			if err != nil {
				s.logger.Warnw("signal handling failed", "type", msg.Type, "from_seat", msg.FromSeat, "error", err)
			}
			if closed {
				s.logger.Infow("room closed by host", "room_code", s.code)
				return nil
			}

		case err := <-supervised:
			return err

		case <-pingTicker.C:
			s.broadcastPing()
		}
	}
}

// handleSignal dispatches one mailbox message. The bool return reports
// room closure, which ends the session.
func (s *Session) handleSignal(ctx context.Context, msg domain.SignalMessage) (bool, error) {
	switch msg.Type {
	case domain.MessagePlayerJoined:
		var payload domain.SeatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		if s.isHost {
			return false, s.negotiator.StartPairing(ctx, payload.Seat)
		}
		return false, nil

	case domain.MessagePlayerLeft:
		var payload domain.SeatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		s.dropPeer(payload.Seat)
		return false, nil

	case domain.MessageRoomClosed:
		return true, nil

	case domain.MessageOffer:
		var payload domain.OfferPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		return false, s.negotiator.HandleOffer(ctx, msg.FromSeat, payload)

	case domain.MessageAnswer:
		var payload domain.AnswerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		return false, s.negotiator.HandleAnswer(ctx, msg.FromSeat, payload)

	case domain.MessageICECandidate:
		var payload domain.ICECandidatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		return false, s.negotiator.HandleCandidate(ctx, msg.FromSeat, payload)

	case domain.MessageGameEvent:
		// Mailbox fallback for input while no direct channel exists.
		var payload domain.GameEventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return false, err
		}
		s.applyInput(payload.Seat, payload.Button, payload.Action == "down")
		return false, nil

	default:
		s.logger.Debugw("ignoring unknown message type", "type", msg.Type)
		return false, nil
	}
}

func (s *Session) channelOpen(remote domain.Seat, channel *webrtc.DataChannel) {
	s.mu.Lock()
	s.channels[remote] = channel
	s.mu.Unlock()

	channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handlePacket(remote, msg.Data)
	})

	// A fresh channel has no decoder context on the far side; force the
	// next frame to be a full one.
	if s.isHost {
		s.encoder.Reset()
	}
	s.logger.Infow("direct channel established", "remote_seat", remote)
}

func (s *Session) dropPeer(remote domain.Seat) {
	s.negotiator.ClosePairing(remote)
	s.probe.Forget(int(remote))

	s.mu.Lock()
	delete(s.channels, remote)
	s.mu.Unlock()
	s.logger.Infow("peer dropped", "remote_seat", remote)
}

// handlePacket routes one direct-channel payload by its tag. Malformed
// packets are dropped: the channel is lossy and the next packet heals.
func (s *Session) handlePacket(remote domain.Seat, data []byte) {
	tag, err := mirror.Tag(data)
	if err != nil {
		s.logger.Debugw("dropping unreadable packet", "remote_seat", remote, "error", err)
		return
	}

	switch tag {
	case mirror.TagFullFrame, mirror.TagDiffFrame:
		frame, err := s.decoder.Decode(data)
		if err != nil {
			s.logger.Debugw("dropping undecodable frame", "remote_seat", remote, "error", err)
			return
		}
		if s.cfg.OnFrame != nil {
			s.cfg.OnFrame(frame)
		}

	case mirror.TagAudio:
		samples, err := mirror.DecodeAudio(data)
		if err != nil {
			return
		}
		if s.cfg.OnAudio != nil {
			s.cfg.OnAudio(samples)
		}

	case mirror.TagPing:
		pong, err := mirror.Pong(data)
		if err != nil {
			return
		}
		s.sendPacket(remote, pong)

	case mirror.TagPong:
		if _, err := s.probe.HandlePong(int(remote), data); err != nil {
			s.logger.Debugw("dropping bad pong", "remote_seat", remote, "error", err)
		}

	case mirror.TagInput:
		ev, err := mirror.DecodeInput(data)
		if err != nil {
			return
		}
		s.applyInput(domain.Seat(ev.Seat), ev.Button, ev.Down)
	}
}

func (s *Session) applyInput(seat domain.Seat, button int, down bool) {
	if !s.isHost || s.cfg.Engine == nil {
		return
	}
	if down {
		s.cfg.Engine.ButtonDown(seat, button)
	} else {
		s.cfg.Engine.ButtonUp(seat, button)
	}
}

// SendInput reports a local button transition to the host over the
// direct channel, falling back to the mailbox while none is open.
func (s *Session) SendInput(ctx context.Context, button int, down bool) error {
	if s.isHost {
		s.applyInput(s.seat, button, down)
		return nil
	}

	packet := mirror.EncodeInput(mirror.InputEvent{Seat: int(s.seat), Button: button, Down: down})
	if s.sendPacket(domain.HostSeat, packet) {
		return nil
	}

	action := "up"
	if down {
		action = "down"
	}
	msg, err := domain.NewSignalMessage(domain.MessageGameEvent, s.seat, domain.HostSeat, domain.GameEventPayload{
		Seat:   s.seat,
		Button: button,
		Action: action,
	})
	if err != nil {
		return err
	}
	return s.transport.Relay(ctx, s.code, msg)
}

// Latency reports the last measured one-way latency to a seat. The
// second return is false until a pong from that seat has arrived.
func (s *Session) Latency(seat domain.Seat) (time.Duration, bool) {
	return s.probe.Latency(int(seat))
}

// LoadGame fetches a ROM from the blob store and loads it into the
// engine. Host only.
func (s *Session) LoadGame(ctx context.Context, name string) error {
	if !s.isHost {
		return fmt.Errorf("only the host loads games")
	}
	if s.cfg.Engine == nil || s.cfg.Blobs == nil {
		return fmt.Errorf("session has no engine or blob store")
	}

	data, err := s.cfg.Blobs.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch game image %q: %w", name, err)
	}
	if err := s.cfg.Engine.LoadImage(data); err != nil {
		return fmt.Errorf("load game image %q: %w", name, err)
	}

	// New game, new raster; guests must not diff against the old one.
	s.encoder.Reset()
	s.logger.Infow("game loaded", "name", name, "bytes", len(data))
	return nil
}

// Games lists the ROM images available to host.
func (s *Session) Games(ctx context.Context) ([]string, error) {
	if s.cfg.Blobs == nil {
		return nil, fmt.Errorf("session has no blob store")
	}
	return s.cfg.Blobs.List(ctx, "")
}

// Leave relinquishes the seat. A leaving host closes the room.
func (s *Session) Leave(ctx context.Context) error {
	return s.transport.Leave(ctx, s.code, s.seat)
}

func (s *Session) mirrorFrame(frame []byte) {
	packet, err := s.encoder.Encode(frame)
	if err != nil {
		s.logger.Warnw("frame encoding failed", "error", err)
		return
	}
	s.broadcastPacket(packet)
}

func (s *Session) mirrorAudio(left, right float32) {
	s.audioMu.Lock()
	s.audioBuf = append(s.audioBuf, left, right)
	if len(s.audioBuf) < audioFlushSamples {
		s.audioMu.Unlock()
		return
	}
	samples := s.audioBuf
	s.audioBuf = nil
	s.audioMu.Unlock()

	s.broadcastPacket(mirror.EncodeAudio(samples))
}

func (s *Session) broadcastPing() {
	s.broadcastPacket(s.probe.Ping())
}

func (s *Session) broadcastPacket(packet []byte) {
	s.mu.RLock()
	channels := make(map[domain.Seat]*webrtc.DataChannel, len(s.channels))
	for seat, channel := range s.channels {
		channels[seat] = channel
	}
	s.mu.RUnlock()

	for seat, channel := range channels {
		if err := channel.Send(packet); err != nil {
			s.logger.Debugw("channel send failed", "remote_seat", seat, "error", err)
		}
	}
}

func (s *Session) sendPacket(remote domain.Seat, packet []byte) bool {
	s.mu.RLock()
	channel, ok := s.channels[remote]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := channel.Send(packet); err != nil {
		s.logger.Debugw("channel send failed", "remote_seat", remote, "error", err)
		return false
	}
	return true
}

func (s *Session) teardown() {
	if s.negotiator != nil {
		s.negotiator.Close()
	}
	s.transport.Close()

	s.mu.Lock()
	s.channels = make(map[domain.Seat]*webrtc.DataChannel)
	s.mu.Unlock()
}
