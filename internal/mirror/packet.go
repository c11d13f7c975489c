// Package mirror implements the lossy codecs that carry the host's frame
// and audio output to guest peers over the direct data channel, plus the
// round-trip latency probe. Every payload starts with a one-byte tag.
package mirror

import "errors"

const (
	TagFullFrame byte = 0x01
	TagDiffFrame byte = 0x02
	TagAudio     byte = 0x03
	TagPing      byte = 0x04
	TagPong      byte = 0x05
	TagInput     byte = 0x06
)

var (
	ErrEmptyPacket   = errors.New("empty packet")
	ErrUnknownTag    = errors.New("unknown packet tag")
	ErrShortPacket   = errors.New("packet shorter than its header")
	ErrWrongTag      = errors.New("unexpected packet tag")
)

// Tag reports the packet kind without consuming it.
func Tag(packet []byte) (byte, error) {
	if len(packet) == 0 {
		return 0, ErrEmptyPacket
	}
	switch packet[0] {
	case TagFullFrame, TagDiffFrame, TagAudio, TagPing, TagPong, TagInput:
		return packet[0], nil
	default:
		return 0, ErrUnknownTag
	}
}

// InputEvent is a game-input report carried over the direct channel from
// a guest seat to the host.
type InputEvent struct {
	Seat   int
	Button int
	Down   bool
}

// EncodeInput packs an input event: tag, seat, button, action.
func EncodeInput(ev InputEvent) []byte {
	down := byte(0)
	if ev.Down {
		down = 1
	}
	return []byte{TagInput, byte(ev.Seat), byte(ev.Button), down}
}

// DecodeInput unpacks an input event packet.
func DecodeInput(packet []byte) (InputEvent, error) {
	if len(packet) < 1 || packet[0] != TagInput {
		return InputEvent{}, ErrWrongTag
	}
	if len(packet) < 4 {
		return InputEvent{}, ErrShortPacket
	}
	return InputEvent{
		Seat:   int(packet[1]),
		Button: int(packet[2]),
		Down:   packet[3] == 1,
	}, nil
}
