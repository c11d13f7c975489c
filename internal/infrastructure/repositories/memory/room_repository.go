package memory

import (
	"context"
	"sync"
	"time"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
)

type roomEntry struct {
	room      *domain.Room
	expiresAt time.Time
}

// MemoryRoomRepository keeps live room records in a mutex-guarded map with
// per-record expiry. Expiry is enforced lazily on access and by a janitor
// goroutine so abandoned rooms free their codes without traffic.
type MemoryRoomRepository struct {
	rooms map[domain.RoomCode]*roomEntry
	ttl   time.Duration
	mu    sync.RWMutex
	done  chan struct{}
	once  sync.Once
}

func NewMemoryRoomRepository(ttl time.Duration) *MemoryRoomRepository {
	r := &MemoryRoomRepository{
		rooms: make(map[domain.RoomCode]*roomEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go r.janitor()
	return r
}

var _ ports.RoomRepository = (*MemoryRoomRepository)(nil)

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.rooms[room.Code]; exists && entry.expiresAt.After(time.Now()) {
		return domain.ErrRoomExists
	}

	r.rooms[room.Code] = &roomEntry{room: cloneRoom(room), expiresAt: time.Now().Add(r.ttl)}
	return nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	r.mu.RLock()
	entry, exists := r.rooms[code]
	r.mu.RUnlock()

	if !exists || !entry.expiresAt.After(time.Now()) {
		return nil, domain.ErrRoomNotFound
	}
	return cloneRoom(entry.room), nil
}

func (r *MemoryRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.rooms[room.Code]
	if !exists || !entry.expiresAt.After(time.Now()) {
		return domain.ErrRoomNotFound
	}

	entry.room = cloneRoom(room)
	entry.expiresAt = time.Now().Add(r.ttl)
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, code)
	return nil
}

func (r *MemoryRoomRepository) Touch(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.rooms[code]
	if !exists || !entry.expiresAt.After(time.Now()) {
		return domain.ErrRoomNotFound
	}

	entry.expiresAt = time.Now().Add(r.ttl)
	return nil
}

func (r *MemoryRoomRepository) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *MemoryRoomRepository) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			now := time.Now()
			r.mu.Lock()
			for code, entry := range r.rooms {
				if !entry.expiresAt.After(now) {
					delete(r.rooms, code)
				}
			}
			r.mu.Unlock()
		}
	}
}

// cloneRoom keeps callers from mutating the stored record through a
// shared seat map.
func cloneRoom(room *domain.Room) *domain.Room {
	clone := *room
	clone.SeatTokens = make(map[domain.Seat]domain.Token, len(room.SeatTokens))
	for seat, token := range room.SeatTokens {
		clone.SeatTokens[seat] = token
	}
	return &clone
}
