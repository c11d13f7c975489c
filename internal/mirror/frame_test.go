package mirror

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternFrame(seed byte) []byte {
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = byte(i) ^ seed
	}
	return frame
}

func TestFirstFrameIsFull(t *testing.T) {
	enc := NewFrameEncoder()

	packet, err := enc.Encode(patternFrame(0))
	require.NoError(t, err)
	assert.Equal(t, TagFullFrame, packet[0])
	assert.Len(t, packet, 1+FrameSize/2)
}

func TestFullFrameRoundTrip(t *testing.T) {
	enc := NewFrameEncoder()
	dec := NewFrameDecoder()

	original := patternFrame(0x5a)
	packet, err := enc.Encode(original)
	require.NoError(t, err)

	decoded, err := dec.Decode(packet)
	require.NoError(t, err)
	require.Len(t, decoded, FrameSize)

	// Exact at the sampled strides, neighbor-fill elsewhere.
	for i := 0; i < FrameSize; i += 2 {
		assert.Equal(t, original[i], decoded[i], "sampled pixel %d", i)
		assert.Equal(t, original[i], decoded[i+1], "filled pixel %d", i+1)
	}
}

func TestSmallChangeEmitsDiff(t *testing.T) {
	enc := NewFrameEncoder()
	dec := NewFrameDecoder()

	base := patternFrame(0)
	_, err := enc.Encode(base)
	require.NoError(t, err)
	_, err = dec.Decode(mustEncodeFull(t, base))
	require.NoError(t, err)

	changed := make([]byte, FrameSize)
	copy(changed, base)
	changed[0] = 0xff
	changed[100] = 0xee
	changed[FrameSize-1] = 0xdd

	packet, err := enc.Encode(changed)
	require.NoError(t, err)
	assert.Equal(t, TagDiffFrame, packet[0])
	assert.Len(t, packet, 1+3*3)

	decoded, err := dec.Decode(packet)
	require.NoError(t, err)

	// Decode reproduces the post-change raster exactly at every changed index.
	assert.Equal(t, byte(0xff), decoded[0])
	assert.Equal(t, byte(0xee), decoded[100])
	assert.Equal(t, byte(0xdd), decoded[FrameSize-1])
}

func TestLargeChangeFallsBackToFull(t *testing.T) {
	enc := NewFrameEncoder()

	base := patternFrame(0)
	_, err := enc.Encode(base)
	require.NoError(t, err)

	// Flip more than half of the raster.
	packet, err := enc.Encode(patternFrame(0xff))
	require.NoError(t, err)
	assert.Equal(t, TagFullFrame, packet[0])
}

func TestDiffAgainstKnownPriorBuffer(t *testing.T) {
	enc := NewFrameEncoder()
	dec := NewFrameDecoder()

	base := patternFrame(7)
	_, err := enc.Encode(base)
	require.NoError(t, err)
	_, err = dec.Decode(mustEncodeFull(t, base))
	require.NoError(t, err)

	changed := make([]byte, FrameSize)
	copy(changed, base)
	for i := 0; i < 1000; i++ {
		changed[i*7%FrameSize] ^= 0x81
	}

	packet, err := enc.Encode(changed)
	require.NoError(t, err)
	require.Equal(t, TagDiffFrame, packet[0])

	decoded, err := dec.Decode(packet)
	require.NoError(t, err)
	for i := range changed {
		if changed[i] != base[i] {
			assert.Equal(t, changed[i], decoded[i], "changed pixel %d", i)
		}
	}
}

func TestDecoderSkipsOutOfRangeIndices(t *testing.T) {
	dec := NewFrameDecoder()

	// Pair referencing an index past the raster plus one valid pair.
	packet := []byte{TagDiffFrame}
	var pair [3]byte
	binary.LittleEndian.PutUint16(pair[:2], 0xfff0)
	pair[2] = 0xaa
	packet = append(packet, pair[:]...)
	binary.LittleEndian.PutUint16(pair[:2], 5)
	pair[2] = 0xbb
	packet = append(packet, pair[:]...)

	decoded, err := dec.Decode(packet)
	require.NoError(t, err)
	assert.Equal(t, byte(0xbb), decoded[5])
}

func TestDecoderToleratesTruncatedDiff(t *testing.T) {
	dec := NewFrameDecoder()

	// A trailing partial pair is dropped, not fatal.
	packet := []byte{TagDiffFrame, 0x05, 0x00}
	_, err := dec.Decode(packet)
	assert.NoError(t, err)
}

func TestEncodeRejectsWrongSize(t *testing.T) {
	enc := NewFrameEncoder()

	_, err := enc.Encode(make([]byte, 100))
	assert.Error(t, err)
}

func TestResetForcesFullFrame(t *testing.T) {
	enc := NewFrameEncoder()

	base := patternFrame(0)
	_, err := enc.Encode(base)
	require.NoError(t, err)

	enc.Reset()
	packet, err := enc.Encode(base)
	require.NoError(t, err)
	assert.Equal(t, TagFullFrame, packet[0])
}

func mustEncodeFull(t *testing.T, frame []byte) []byte {
	t.Helper()
	packet, err := NewFrameEncoder().Encode(frame)
	require.NoError(t, err)
	require.Equal(t, TagFullFrame, packet[0])
	return packet
}
