package mirror

import (
	"encoding/binary"
	"sync"
	"time"
)

// DefaultProbeInterval is how often a peer pings each open channel.
const DefaultProbeInterval = 2 * time.Second

// LatencyProbe measures one-way channel latency as half the ping/pong
// round trip. A peer with no measurement yet is reported as absent,
// which is distinct from a measured zero.
type LatencyProbe struct {
	now func() time.Time

	mu        sync.RWMutex
	latencies map[int]time.Duration
}

func NewLatencyProbe() *LatencyProbe {
	return &LatencyProbe{
		now:       time.Now,
		latencies: make(map[int]time.Duration),
	}
}

// Ping builds a ping packet stamped with the current time.
func (p *LatencyProbe) Ping() []byte {
	packet := make([]byte, 9)
	packet[0] = TagPing
	binary.LittleEndian.PutUint64(packet[1:], uint64(p.now().UnixMilli()))
	return packet
}

// Pong echoes a ping packet back with the original timestamp intact.
func Pong(ping []byte) ([]byte, error) {
	if len(ping) < 1 || ping[0] != TagPing {
		return nil, ErrWrongTag
	}
	if len(ping) < 9 {
		return nil, ErrShortPacket
	}
	pong := make([]byte, 9)
	pong[0] = TagPong
	copy(pong[1:], ping[1:9])
	return pong, nil
}

// HandlePong records the latency to the given seat from an echoed pong.
func (p *LatencyProbe) HandlePong(seat int, pong []byte) (time.Duration, error) {
	if len(pong) < 1 || pong[0] != TagPong {
		return 0, ErrWrongTag
	}
	if len(pong) < 9 {
		return 0, ErrShortPacket
	}

	sent := time.UnixMilli(int64(binary.LittleEndian.Uint64(pong[1:9])))
	latency := p.now().Sub(sent) / 2
	if latency < 0 {
		latency = 0
	}

	p.mu.Lock()
	p.latencies[seat] = latency
	p.mu.Unlock()
	return latency, nil
}

// Latency returns the last measurement for a seat. The second return is
// false when no pong has ever arrived from that seat.
func (p *LatencyProbe) Latency(seat int) (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	latency, ok := p.latencies[seat]
	return latency, ok
}

// Forget drops the measurement for a seat whose channel closed.
func (p *LatencyProbe) Forget(seat int) {
	p.mu.Lock()
	delete(p.latencies, seat)
	p.mu.Unlock()
}
