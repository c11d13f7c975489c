package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"playmesh/internal/core/domain"
)

// Sender pushes an outbound signaling message through whatever
// transport the session is running.
type Sender func(ctx context.Context, msg domain.SignalMessage) error

// ChannelHandler receives the data channel for a remote seat once it
// opens.
type ChannelHandler func(remote domain.Seat, channel *webrtc.DataChannel)

// Negotiator owns every pairing for the local seat. The host starts a
// pairing per guest; guests only ever answer.
type Negotiator struct {
	localSeat domain.Seat
	isHost    bool
	send      Sender
	config    webrtc.Configuration

	mu        sync.Mutex
	pairings  map[domain.Seat]*pairing
	onChannel ChannelHandler

	logger *zap.SugaredLogger
}

func NewNegotiator(localSeat domain.Seat, isHost bool, config webrtc.Configuration, send Sender, logger *zap.SugaredLogger) *Negotiator {
	return &Negotiator{
		localSeat: localSeat,
		isHost:    isHost,
		send:      send,
		config:    config,
		pairings:  make(map[domain.Seat]*pairing),
		logger:    logger,
	}
}

// OnChannel registers the callback invoked when a data channel to a
// remote seat opens. Must be set before any pairing starts.
func (n *Negotiator) OnChannel(fn ChannelHandler) {
	n.mu.Lock()
	n.onChannel = fn
	n.mu.Unlock()
}

// State reports the pairing state for a remote seat; seats never paired
// with are Idle.
func (n *Negotiator) State(remote domain.Seat) State {
	n.mu.Lock()
	p, ok := n.pairings[remote]
	n.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return p.State()
}

func (n *Negotiator) pairing(remote domain.Seat) *pairing {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pairings[remote]
	if !ok {
		p = newPairing(remote)
		n.pairings[remote] = p
	}
	return p
}

// StartPairing creates the peer connection and data channel for a guest
// and sends the offer. Host only: guests wait for the offer to arrive.
func (n *Negotiator) StartPairing(ctx context.Context, remote domain.Seat) error {
	if !n.isHost {
		return fmt.Errorf("seat %d is not the host and cannot initiate a pairing", n.localSeat)
	}

	p := n.pairing(remote)
	switch state := p.State(); state {
	case StateIdle:
	case StateFailed:
		// A dead attempt does not block the seat; tear it down and
		// negotiate from scratch.
		n.ClosePairing(remote)
		p = n.pairing(remote)
	default:
		n.logger.Warnw("pairing already in progress", "remote_seat", remote, "state", state)
		return nil
	}

	pc, err := webrtc.NewPeerConnection(n.config)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	// Lossy by construction: stale frames are worthless, so the channel
	// never retransmits and never reorders.
	ordered := false
	maxRetransmits := uint16(0)
	channel, err := pc.CreateDataChannel("game", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		pc.Close()
		return fmt.Errorf("create data channel: %w", err)
	}

	p.mu.Lock()
	p.pc = pc
	p.channel = channel
	p.mu.Unlock()

	n.wireConnection(ctx, p, pc)
	channel.OnOpen(func() {
		n.channelOpen(p, channel)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		n.failPairing(p)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		n.failPairing(p)
		return fmt.Errorf("set local description: %w", err)
	}

	msg, err := domain.NewSignalMessage(domain.MessageOffer, n.localSeat, remote, domain.OfferPayload{SDP: offer.SDP})
	if err != nil {
		n.failPairing(p)
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		n.failPairing(p)
		return fmt.Errorf("send offer: %w", err)
	}

	p.setState(StateOfferSent)
	n.logger.Infow("offer sent", "remote_seat", remote)
	return nil
}

// HandleOffer answers an incoming offer. Offers for a pairing already
// in flight are stale leftovers from a previous attempt and are
// discarded; a failed pairing accepts a fresh offer.
func (n *Negotiator) HandleOffer(ctx context.Context, from domain.Seat, payload domain.OfferPayload) error {
	p := n.pairing(from)
	switch state := p.State(); state {
	case StateIdle:
	case StateFailed:
		n.ClosePairing(from)
		p = n.pairing(from)
	default:
		n.logger.Warnw("discarding stale offer", "remote_seat", from, "state", state)
		return nil
	}

	pc, err := webrtc.NewPeerConnection(n.config)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	p.mu.Lock()
	p.pc = pc
	p.mu.Unlock()

	n.wireConnection(ctx, p, pc)
	pc.OnDataChannel(func(channel *webrtc.DataChannel) {
		p.mu.Lock()
		p.channel = channel
		p.mu.Unlock()
		channel.OnOpen(func() {
			n.channelOpen(p, channel)
		})
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  payload.SDP,
	}); err != nil {
		n.failPairing(p)
		return fmt.Errorf("set remote description: %w", err)
	}
	n.flushPending(p)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		n.failPairing(p)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		n.failPairing(p)
		return fmt.Errorf("set local description: %w", err)
	}

	msg, err := domain.NewSignalMessage(domain.MessageAnswer, n.localSeat, from, domain.AnswerPayload{SDP: answer.SDP})
	if err != nil {
		n.failPairing(p)
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		n.failPairing(p)
		return fmt.Errorf("send answer: %w", err)
	}

	p.setState(StateAnswerReceived)
	n.logger.Infow("answer sent", "remote_seat", from)
	return nil
}

// HandleAnswer applies the guest's answer. Answers are only valid while
// the offer is in flight; anything else is stale and discarded.
func (n *Negotiator) HandleAnswer(ctx context.Context, from domain.Seat, payload domain.AnswerPayload) error {
	p := n.pairing(from)
	if state := p.State(); state != StateOfferSent {
		n.logger.Warnw("discarding stale answer", "remote_seat", from, "state", state)
		return nil
	}

	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		n.logger.Warnw("answer for pairing without a connection", "remote_seat", from)
		return nil
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  payload.SDP,
	}); err != nil {
		n.failPairing(p)
		return fmt.Errorf("set remote description: %w", err)
	}
	n.flushPending(p)

	p.setState(StateAnswerReceived)
	n.logger.Infow("answer applied", "remote_seat", from)
	return nil
}

// HandleCandidate adds a remote ICE candidate. Candidates arriving
// before the remote description are queued; candidates the connection
// rejects are dropped, never fatal.
func (n *Negotiator) HandleCandidate(ctx context.Context, from domain.Seat, payload domain.ICECandidatePayload) error {
	p := n.pairing(from)
	candidate := webrtc.ICECandidateInit{
		Candidate:     payload.Candidate,
		SDPMid:        payload.SDPMid,
		SDPMLineIndex: payload.SDPMLineIndex,
	}

	p.mu.Lock()
	if p.pc == nil || !p.remoteSet {
		p.pending = append(p.pending, candidate)
		p.mu.Unlock()
		n.logger.Debugw("queueing early candidate", "remote_seat", from)
		return nil
	}
	pc := p.pc
	p.mu.Unlock()

	if err := pc.AddICECandidate(candidate); err != nil {
		n.logger.Warnw("candidate rejected", "remote_seat", from, "error", err)
	}
	return nil
}

// ClosePairing tears down the connection to a remote seat, typically on
// player-left. The seat returns to Idle so a future join can pair anew.
func (n *Negotiator) ClosePairing(remote domain.Seat) {
	n.mu.Lock()
	p, ok := n.pairings[remote]
	delete(n.pairings, remote)
	n.mu.Unlock()
	if ok {
		p.close()
		n.logger.Infow("pairing closed", "remote_seat", remote)
	}
}

// Close tears down every pairing.
func (n *Negotiator) Close() {
	n.mu.Lock()
	pairings := n.pairings
	n.pairings = make(map[domain.Seat]*pairing)
	n.mu.Unlock()

	for _, p := range pairings {
		p.close()
	}
}

func (n *Negotiator) wireConnection(ctx context.Context, p *pairing, pc *webrtc.PeerConnection) {
	remote := p.remoteSeat

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		msg, err := domain.NewSignalMessage(domain.MessageICECandidate, n.localSeat, remote, domain.ICECandidatePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
		if err != nil {
			n.logger.Errorw("encoding candidate failed", "remote_seat", remote, "error", err)
			return
		}
		if err := n.send(ctx, msg); err != nil {
			n.logger.Warnw("sending candidate failed", "remote_seat", remote, "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		n.logger.Infow("connection state changed", "remote_seat", remote, "state", state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if p.State() != StateFailed {
				p.setState(StateFailed)
			}
		}
	})
}

func (n *Negotiator) channelOpen(p *pairing, channel *webrtc.DataChannel) {
	p.setState(StateConnected)
	n.logger.Infow("data channel open", "remote_seat", p.remoteSeat, "label", channel.Label())

	n.mu.Lock()
	handler := n.onChannel
	n.mu.Unlock()
	if handler != nil {
		handler(p.remoteSeat, channel)
	}
}

// flushPending drains candidates that arrived before the remote
// description was applied.
func (n *Negotiator) flushPending(p *pairing) {
	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	pc := p.pc
	p.mu.Unlock()

	for _, candidate := range pending {
		if err := pc.AddICECandidate(candidate); err != nil {
			n.logger.Warnw("queued candidate rejected", "remote_seat", p.remoteSeat, "error", err)
		}
	}
}

func (n *Negotiator) failPairing(p *pairing) {
	p.close()
}
