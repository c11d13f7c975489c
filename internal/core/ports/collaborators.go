package ports

import (
	"context"

	"playmesh/internal/core/domain"
)

// GameEngine is the opaque emulation core run by the host. It loads a ROM
// image, advances on its own clock and emits raw pixel/audio buffers
// through the registered sinks.
type GameEngine interface {
	LoadImage(data []byte) error
	// SetFrameSink registers the callback receiving one raster buffer per
	// emulated tick (row-major, one byte per pixel).
	SetFrameSink(sink func(frame []byte))
	// SetAudioSink registers the callback receiving one stereo sample
	// pair at a time, each in [-1, 1].
	SetAudioSink(sink func(left, right float32))
	ButtonDown(seat domain.Seat, button int)
	ButtonUp(seat domain.Seat, button int)
}

// BlobStore fetches ROM payloads by name.
type BlobStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
