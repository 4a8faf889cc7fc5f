// Package event defines the events fanned out by the delivery channel.
package event

import (
	"time"

	"campus-dm/domain"
)

type DomainEvent interface {
	ConversationKey() domain.ConversationKey
}

// MessagePublished is emitted after a message has been durably appended.
type MessagePublished struct {
	Message domain.Message
}

func (e MessagePublished) ConversationKey() domain.ConversationKey {
	return e.Message.Key
}

// MemberJoined is emitted to a room when a connection joins it.
type MemberJoined struct {
	Key domain.ConversationKey
	At  time.Time
}

func (e MemberJoined) ConversationKey() domain.ConversationKey { return e.Key }

// MemberLeft is emitted to the remaining members when a connection leaves.
type MemberLeft struct {
	Key domain.ConversationKey
	At  time.Time
}

func (e MemberLeft) ConversationKey() domain.ConversationKey { return e.Key }
