// Package protocol defines the JSON contract between the server and its
// clients: the websocket envelopes and the REST request and response bodies.
// Server handlers and the Go client both build against this package so the
// two sides cannot drift apart.
package protocol

import (
	"time"

	"github.com/google/uuid"

	"campus-dm/domain"
)

const (
	InboundJoin  = "join"
	InboundLeave = "leave"
	InboundSend  = "send"

	OutboundEvent = "event"
	OutboundError = "error"

	EventMessage = "message"
	EventStatus  = "status"

	StatusJoined = "joined"
	StatusLeft   = "left"
)

// Inbound is the envelope from client to server. Key is required for every
// type; SenderID and Text only accompany a send.
type Inbound struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	SenderID string `json:"sender_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Outbound is the envelope from server to client. Exactly one of Message,
// Status or Error is set, according to Type and Event.
type Outbound struct {
	Type    string   `json:"type"`
	Event   string   `json:"event,omitempty"`
	Key     string   `json:"key,omitempty"`
	Message *Message `json:"message,omitempty"`
	Status  *Status  `json:"status,omitempty"`
	Error   *Error   `json:"error,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	Key       string    `json:"conversation_key"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Cursor    int64     `json:"cursor"`
}

// Status reports a membership change in the room.
type Status struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// PostMessageRequest is the REST body for appending one message.
type PostMessageRequest struct {
	SenderID string `json:"sender_id" validate:"required"`
	Text     string `json:"text"`
}

// MessagesResponse carries a backlog page plus the cursor to resume from.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Cursor   int64     `json:"cursor"`
}

func FromDomain(msg domain.Message) Message {
	return Message{
		ID:        msg.ID.String(),
		Key:       string(msg.Key),
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		Cursor:    msg.Cursor(),
	}
}

func (m Message) ToDomain() (domain.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		Key:       domain.ConversationKey(m.Key),
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}, nil
}
