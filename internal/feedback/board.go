package feedback

import (
	"context"
	"sync"
	"time"
)

const defaultBoardLimit = 8

// Board is the toast store: the short list of in-flight messages the
// control API renders. Entries expire after a fixed TTL and are pruned
// lazily on read and write.
type Board struct {
	ttl   time.Duration
	limit int
	now   func() time.Time

	mu      sync.Mutex
	entries []boardEntry
}

type boardEntry struct {
	notification Notification
	expiresAt    time.Time
}

func NewBoard(ttl time.Duration) *Board {
	if ttl == 0 {
		ttl = 4 * time.Second
	}
	return &Board{
		ttl:   ttl,
		limit: defaultBoardLimit,
		now:   time.Now,
	}
}

var _ Notifier = (*Board)(nil)

// Notify adds the notification to the board.
func (b *Board) Notify(ctx context.Context, n Notification) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now)
	b.entries = append(b.entries, boardEntry{
		notification: n,
		expiresAt:    now.Add(b.ttl),
	})
	if len(b.entries) > b.limit {
		b.entries = b.entries[len(b.entries)-b.limit:]
	}
}

// Active returns the not-yet-expired notifications, oldest first.
func (b *Board) Active() []Notification {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now)
	active := make([]Notification, len(b.entries))
	for i, entry := range b.entries {
		active[i] = entry.notification
	}
	return active
}

// prune drops expired entries; callers hold the lock.
func (b *Board) prune(now time.Time) {
	kept := b.entries[:0]
	for _, entry := range b.entries {
		if entry.expiresAt.After(now) {
			kept = append(kept, entry)
		}
	}
	b.entries = kept
}
