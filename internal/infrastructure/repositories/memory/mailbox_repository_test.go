package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playmesh/internal/core/domain"
)

func newTestMailbox(t *testing.T) *MemoryMailboxRepository {
	t.Helper()
	repo := NewMemoryMailboxRepository(50, 120*time.Second)
	t.Cleanup(repo.Close)
	return repo
}

func offerFrom(seat domain.Seat, tag string) domain.SignalMessage {
	msg, _ := domain.NewSignalMessage(domain.MessageOffer, seat, 2, domain.OfferPayload{SDP: tag})
	return msg
}

func TestDrainReturnsMessagesExactlyOnce(t *testing.T) {
	repo := newTestMailbox(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "ABCDEF", 2, offerFrom(1, "v=0 first")))

	got, err := repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MessageOffer, got[0].Type)

	// A second immediate drain finds nothing.
	got, err = repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDrainEmptyMailboxIsNotAnError(t *testing.T) {
	repo := newTestMailbox(t)

	got, err := repo.Drain(context.Background(), "NOROOM", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendReportsEvictions(t *testing.T) {
	repo := newTestMailbox(t)
	ctx := context.Background()

	dropped := 0
	repo.OnEvict(func(count int) { dropped += count })

	for i := 0; i < 52; i++ {
		require.NoError(t, repo.Append(ctx, "ABCDEF", 2, offerFrom(1, "v=0")))
	}

	// Appends 51 and 52 each pushed one message off the head.
	assert.Equal(t, 2, dropped)
}

func TestAppendEvictsOldestPastBound(t *testing.T) {
	repo := newTestMailbox(t)
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		msg, err := domain.NewSignalMessage(domain.MessageGameEvent, 1, 2, domain.GameEventPayload{Seat: 1, Button: i})
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, "ABCDEF", 2, msg))
	}

	got, err := repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	require.Len(t, got, 50)

	// The 50 most recent survive in original relative order: buttons 1..50.
	for i, msg := range got {
		var payload domain.GameEventPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, i+1, payload.Button, "position %d", i)
	}
}

func TestMailboxesAreIndependentPerSeat(t *testing.T) {
	repo := newTestMailbox(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "ABCDEF", 2, offerFrom(1, "v=0 for-two")))
	require.NoError(t, repo.Append(ctx, "ABCDEF", 3, offerFrom(1, "v=0 for-three")))

	got, err := repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = repo.Drain(ctx, "ABCDEF", 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExpiredMailboxDrainsEmpty(t *testing.T) {
	repo := NewMemoryMailboxRepository(50, time.Millisecond)
	t.Cleanup(repo.Close)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "ABCDEF", 2, offerFrom(1, "v=0 stale")))
	time.Sleep(5 * time.Millisecond)

	got, err := repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPurgeDropsPending(t *testing.T) {
	repo := newTestMailbox(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "ABCDEF", 2, offerFrom(1, "v=0 gone")))
	require.NoError(t, repo.Purge(ctx, "ABCDEF", 2))

	got, err := repo.Drain(ctx, "ABCDEF", 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}
