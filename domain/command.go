package domain

// PostMessageCommand carries a sending intent into the service layer.
// CreatedAt is deliberately absent: timestamps are assigned by the store.
type PostMessageCommand struct {
	Key      ConversationKey
	SenderID string
	Text     string
}

// ListMessagesCommand requests the backlog of a conversation.
// Since is a Message.Cursor value; zero means the whole backlog.
type ListMessagesCommand struct {
	Key   ConversationKey
	Since int64
}

// SearchMessagesCommand requests a full-text lookup inside one conversation.
type SearchMessagesCommand struct {
	Key   ConversationKey
	Query string
	Limit int
}
