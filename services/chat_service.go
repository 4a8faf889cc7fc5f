// Package services holds the application layer: every transport (REST,
// websocket, CLI) goes through here rather than touching the repository or
// the delivery channel directly.
package services

import (
	"context"
	"log/slog"

	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/moderation"
	"campus-dm/repositories"
	"campus-dm/runtime"
)

// Searcher answers full-text queries scoped to one conversation.
type Searcher interface {
	Search(ctx context.Context, key domain.ConversationKey, query string, limit int) ([]domain.Message, error)
}

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	GetMessages(ctx context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, error)
	SearchMessages(ctx context.Context, cmd domain.SearchMessagesCommand) ([]domain.Message, error)
}

const defaultSearchLimit = 20

type ChatService struct {
	log       *slog.Logger
	repo      repositories.IMessageRepository
	moderator *moderation.Moderator
	channel   *runtime.Channel
	searcher  Searcher
}

func NewChatService(log *slog.Logger, repo repositories.IMessageRepository,
	moderator *moderation.Moderator, channel *runtime.Channel, searcher Searcher) *ChatService {
	return &ChatService{
		log:       log,
		repo:      repo,
		moderator: moderator,
		channel:   channel,
		searcher:  searcher,
	}
}

// PostMessage masks disallowed words, appends the message durably, then fans
// it out to the room. The append is the commit point: if it fails nothing is
// published, and a failed fan-out still leaves the message retrievable.
func (s ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	masked := s.moderator.Mask(cmd.Text)

	msg, err := s.repo.Append(cmd.Key, cmd.SenderID, masked)
	if err != nil {
		return domain.Message{}, err
	}

	s.channel.Publish(ctx, event.MessagePublished{Message: msg})
	s.log.Debug("Message posted", "key", string(cmd.Key), "id", msg.ID)
	return msg, nil
}

// GetMessages lists the backlog of a conversation strictly after the cursor.
func (s ChatService) GetMessages(_ context.Context, cmd domain.ListMessagesCommand) ([]domain.Message, error) {
	return s.repo.ListSince(cmd.Key, cmd.Since)
}

// SearchMessages runs a full-text query over one conversation's history.
func (s ChatService) SearchMessages(ctx context.Context, cmd domain.SearchMessagesCommand) ([]domain.Message, error) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.searcher.Search(ctx, cmd.Key, cmd.Query, limit)
}
