package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat record. CreatedAt is always server-assigned
// and strictly increasing within a conversation, so (CreatedAt, ID) is a
// total order even for writes landing in the same instant.
type Message struct {
	ID        uuid.UUID
	Key       ConversationKey
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// Cursor returns the position of the message in its conversation's backlog,
// usable as the `since` argument of a ListSince call.
func (m Message) Cursor() int64 {
	return m.CreatedAt.UnixNano()
}
