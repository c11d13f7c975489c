package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playmesh/internal/core/domain"
)

func newTestRooms(t *testing.T, ttl time.Duration) *MemoryRoomRepository {
	t.Helper()
	repo := NewMemoryRoomRepository(ttl)
	t.Cleanup(repo.Close)
	return repo
}

func TestCreateAndGetRoom(t *testing.T) {
	repo := newTestRooms(t, time.Hour)
	ctx := context.Background()

	room := domain.NewRoom("ABCDEF", "host-token")
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.Get(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("ABCDEF"), got.Code)
	assert.Equal(t, []domain.Seat{1}, got.Seats())
}

func TestCreateDuplicateFails(t *testing.T) {
	repo := newTestRooms(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("ABCDEF", "a")))
	err := repo.Create(ctx, domain.NewRoom("ABCDEF", "b"))
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestGetMissingRoom(t *testing.T) {
	repo := newTestRooms(t, time.Hour)

	_, err := repo.Get(context.Background(), "NOROOM")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestExpiredRoomIsGoneAndCodeReusable(t *testing.T) {
	repo := newTestRooms(t, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("ABCDEF", "a")))
	time.Sleep(5 * time.Millisecond)

	_, err := repo.Get(ctx, "ABCDEF")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	// Deletion is terminal; the code may be reused afterward.
	assert.NoError(t, repo.Create(ctx, domain.NewRoom("ABCDEF", "b")))
}

func TestUpdateRewritesSeats(t *testing.T) {
	repo := newTestRooms(t, time.Hour)
	ctx := context.Background()

	room := domain.NewRoom("ABCDEF", "host")
	require.NoError(t, repo.Create(ctx, room))

	room.SeatTokens[2] = "guest"
	require.NoError(t, repo.Update(ctx, room))

	got, err := repo.Get(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, []domain.Seat{1, 2}, got.Seats())
}

func TestUpdateMissingRoom(t *testing.T) {
	repo := newTestRooms(t, time.Hour)

	err := repo.Update(context.Background(), domain.NewRoom("NOROOM", "x"))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newTestRooms(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("ABCDEF", "a")))
	require.NoError(t, repo.Delete(ctx, "ABCDEF"))
	assert.NoError(t, repo.Delete(ctx, "ABCDEF"))

	_, err := repo.Get(ctx, "ABCDEF")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestGetReturnsACopy(t *testing.T) {
	repo := newTestRooms(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("ABCDEF", "host")))

	got, err := repo.Get(ctx, "ABCDEF")
	require.NoError(t, err)
	got.SeatTokens[4] = "intruder"

	fresh, err := repo.Get(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.False(t, fresh.HasSeat(4))
}
