package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputEventRoundTrip(t *testing.T) {
	ev := InputEvent{Seat: 3, Button: 7, Down: true}

	decoded, err := DecodeInput(EncodeInput(ev))
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)

	ev.Down = false
	decoded, err = DecodeInput(EncodeInput(ev))
	require.NoError(t, err)
	assert.False(t, decoded.Down)
}

func TestTagClassification(t *testing.T) {
	tag, err := Tag([]byte{TagFullFrame, 0})
	require.NoError(t, err)
	assert.Equal(t, TagFullFrame, tag)

	_, err = Tag(nil)
	assert.ErrorIs(t, err, ErrEmptyPacket)

	_, err = Tag([]byte{0x7f})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeInputRejectsMalformed(t *testing.T) {
	_, err := DecodeInput([]byte{TagPing, 1, 2, 3})
	assert.ErrorIs(t, err, ErrWrongTag)

	_, err = DecodeInput([]byte{TagInput, 1})
	assert.ErrorIs(t, err, ErrShortPacket)
}
