// Package negotiation drives WebRTC connection establishment between
// seated peers over the signaling relay. The host always offers; each
// (host, guest) pair advances through a small state machine and ends
// with an unordered, no-retransmit data channel.
package negotiation

import (
	"sync"

	"github.com/pion/webrtc/v3"

	"playmesh/internal/core/domain"
)

type State int

const (
	StateIdle State = iota
	StateOfferSent
	StateAnswerReceived
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer_sent"
	case StateAnswerReceived:
		return "answer_received"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pairing tracks one negotiation attempt with a remote seat. OfferSent
// marks the offer in flight; AnswerReceived marks the answer applied on
// either side; the data channel opening lands both ends in Connected.
type pairing struct {
	remoteSeat domain.Seat

	mu        sync.Mutex
	state     State
	pc        *webrtc.PeerConnection
	channel   *webrtc.DataChannel
	remoteSet bool

	// Candidates that raced ahead of the remote description.
	pending []webrtc.ICECandidateInit
}

func newPairing(remote domain.Seat) *pairing {
	return &pairing{remoteSeat: remote}
}

func (p *pairing) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *pairing) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *pairing) close() {
	p.mu.Lock()
	pc := p.pc
	p.pc = nil
	p.channel = nil
	p.state = StateFailed
	p.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
}
