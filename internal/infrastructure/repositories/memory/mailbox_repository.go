package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
)

type mailboxEntry struct {
	messages  []domain.SignalMessage
	expiresAt time.Time
}

// MemoryMailboxRepository holds bounded per-(room,seat) message queues.
// Appends past the bound evict from the head; reads are destructive.
type MemoryMailboxRepository struct {
	boxes   map[string]*mailboxEntry
	limit   int
	ttl     time.Duration
	onEvict func(count int)
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func NewMemoryMailboxRepository(limit int, ttl time.Duration) *MemoryMailboxRepository {
	r := &MemoryMailboxRepository{
		boxes: make(map[string]*mailboxEntry),
		limit: limit,
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go r.janitor()
	return r
}

var _ ports.MailboxRepository = (*MemoryMailboxRepository)(nil)

// OnEvict registers a callback reporting how many messages a full
// mailbox dropped on append. Set once during wiring, before traffic.
func (r *MemoryMailboxRepository) OnEvict(fn func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

func mailboxKey(code domain.RoomCode, seat domain.Seat) string {
	return fmt.Sprintf("%s:%d", code, seat)
}

func (r *MemoryMailboxRepository) Append(ctx context.Context, code domain.RoomCode, seat domain.Seat, msg domain.SignalMessage) error {
	r.mu.Lock()

	key := mailboxKey(code, seat)
	entry, exists := r.boxes[key]
	if !exists || !entry.expiresAt.After(time.Now()) {
		entry = &mailboxEntry{}
		r.boxes[key] = entry
	}

	entry.messages = append(entry.messages, msg)
	evicted := len(entry.messages) - r.limit
	if evicted > 0 {
		// Oldest-first drop: stale negotiation messages are useless anyway.
		entry.messages = entry.messages[evicted:]
	}
	entry.expiresAt = time.Now().Add(r.ttl)
	onEvict := r.onEvict
	r.mu.Unlock()

	if evicted > 0 && onEvict != nil {
		onEvict(evicted)
	}
	return nil
}

func (r *MemoryMailboxRepository) Drain(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := mailboxKey(code, seat)
	entry, exists := r.boxes[key]
	if !exists || !entry.expiresAt.After(time.Now()) {
		delete(r.boxes, key)
		return []domain.SignalMessage{}, nil
	}

	messages := entry.messages
	delete(r.boxes, key)
	return messages, nil
}

func (r *MemoryMailboxRepository) Purge(ctx context.Context, code domain.RoomCode, seat domain.Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.boxes, mailboxKey(code, seat))
	return nil
}

func (r *MemoryMailboxRepository) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *MemoryMailboxRepository) janitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			now := time.Now()
			r.mu.Lock()
			for key, entry := range r.boxes {
				if !entry.expiresAt.After(now) {
					delete(r.boxes, key)
				}
			}
			r.mu.Unlock()
		}
	}
}
