package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"campus-dm/domain"
)

// Timeline is the session's ordered, deduplicated view of one conversation.
// Live delivery and backlog polling both feed it; a message arriving through
// both paths is counted once, keyed by its ID.
type Timeline struct {
	mu       sync.RWMutex
	seen     map[uuid.UUID]struct{}
	messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[uuid.UUID]struct{})}
}

// Add inserts a message unless its ID is already present. It reports whether
// the timeline grew.
func (t *Timeline) Add(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(msg)
}

// Merge inserts a batch and returns the messages that were actually new,
// in timeline order.
func (t *Timeline) Merge(batch []domain.Message) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added []domain.Message
	for _, msg := range batch {
		if t.add(msg) {
			added = append(added, msg)
		}
	}
	sort.Slice(added, func(i, j int) bool { return before(added[i], added[j]) })
	return added
}

func (t *Timeline) add(msg domain.Message) bool {
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	t.messages = append(t.messages, msg)
	// Live events arrive in order; only a late backlog merge needs a re-sort.
	if n := len(t.messages); n > 1 && before(msg, t.messages[n-2]) {
		sort.Slice(t.messages, func(i, j int) bool { return before(t.messages[i], t.messages[j]) })
	}
	return true
}

// Messages returns a copy of the timeline in chronological order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Cursor is the timestamp of the newest message, in nanoseconds, or zero for
// an empty timeline. Polling with it never re-fetches what is already here.
func (t *Timeline) Cursor() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return 0
	}
	return t.messages[len(t.messages)-1].Cursor()
}

// before orders messages by timestamp, breaking ties by ID so the order is
// total and stable across processes.
func before(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
