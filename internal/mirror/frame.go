package mirror

import (
	"encoding/binary"
	"fmt"
)

const (
	FrameWidth  = 256
	FrameHeight = 240
	FrameSize   = FrameWidth * FrameHeight
)

// diffThreshold is the changed-pixel count above which a diff payload
// would exceed a resampled full frame anyway.
const diffThreshold = FrameSize / 2

// FrameEncoder runs on the host. It retains the previously sent raster
// and emits either a stride-2 full frame or a sparse diff against it.
// Delivery is best-effort: a dropped diff leaves artifacts that the next
// full frame heals, and no retransmission is ever attempted.
type FrameEncoder struct {
	last   [FrameSize]byte
	primed bool
}

func NewFrameEncoder() *FrameEncoder {
	return &FrameEncoder{}
}

// Encode compresses one raster. The input must be exactly FrameSize bytes.
func (e *FrameEncoder) Encode(frame []byte) ([]byte, error) {
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("frame must be %d bytes, got %d", FrameSize, len(frame))
	}

	changed := 0
	if e.primed {
		for i := 0; i < FrameSize; i++ {
			if frame[i] != e.last[i] {
				changed++
			}
		}
	}

	if !e.primed || changed > diffThreshold {
		packet := make([]byte, 1+FrameSize/2)
		packet[0] = TagFullFrame
		for i := 0; i < FrameSize/2; i++ {
			packet[1+i] = frame[2*i]
		}
		copy(e.last[:], frame)
		e.primed = true
		return packet, nil
	}

	packet := make([]byte, 1, 1+changed*3)
	packet[0] = TagDiffFrame
	var pair [3]byte
	for i := 0; i < FrameSize; i++ {
		if frame[i] != e.last[i] {
			binary.LittleEndian.PutUint16(pair[:2], uint16(i))
			pair[2] = frame[i]
			packet = append(packet, pair[:]...)
		}
	}
	copy(e.last[:], frame)
	return packet, nil
}

// Reset forces the next Encode to emit a full frame.
func (e *FrameEncoder) Reset() {
	e.primed = false
}

// FrameDecoder runs on a guest. It reconstructs the mirrored raster from
// full and diff packets, tolerating loss: a malformed pair is skipped
// per-pixel and never aborts the frame.
type FrameDecoder struct {
	current [FrameSize]byte
	primed  bool
}

func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Decode applies one frame packet and returns a copy of the raster.
func (d *FrameDecoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, ErrEmptyPacket
	}

	switch packet[0] {
	case TagFullFrame:
		payload := packet[1:]
		if len(payload) != FrameSize/2 {
			return nil, fmt.Errorf("full frame payload must be %d bytes, got %d", FrameSize/2, len(payload))
		}
		// Each sample fills its own slot and the following one.
		for i, v := range payload {
			d.current[2*i] = v
			d.current[2*i+1] = v
		}
		d.primed = true

	case TagDiffFrame:
		payload := packet[1:]
		// A trailing partial pair is dropped along with any pair whose
		// index falls outside the raster.
		for off := 0; off+3 <= len(payload); off += 3 {
			index := int(binary.LittleEndian.Uint16(payload[off : off+2]))
			if index >= FrameSize {
				continue
			}
			d.current[index] = payload[off+2]
		}

	default:
		return nil, ErrWrongTag
	}

	out := make([]byte, FrameSize)
	copy(out, d.current[:])
	return out, nil
}
