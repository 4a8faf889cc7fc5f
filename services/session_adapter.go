package services

import (
	"context"

	"github.com/google/uuid"

	"campus-dm/contract"
	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/moderation"
	"campus-dm/repositories"
	"campus-dm/runtime"
	"campus-dm/session"
)

var (
	_ session.Store     = (*LocalStore)(nil)
	_ session.Transport = (*LocalTransport)(nil)
)

// LocalStore adapts the repository for in-process sessions. It appends
// without publishing: the session announces its own messages through the
// transport once the append succeeded.
type LocalStore struct {
	repo      repositories.IMessageRepository
	moderator *moderation.Moderator
}

func NewLocalStore(repo repositories.IMessageRepository, moderator *moderation.Moderator) *LocalStore {
	return &LocalStore{repo: repo, moderator: moderator}
}

func (s *LocalStore) Append(_ context.Context, key domain.ConversationKey, senderID, text string) (domain.Message, error) {
	return s.repo.Append(key, senderID, s.moderator.Mask(text))
}

func (s *LocalStore) ListSince(_ context.Context, key domain.ConversationKey, since int64) ([]domain.Message, error) {
	return s.repo.ListSince(key, since)
}

// LocalTransport gives one in-process session its own connection identity on
// the shared delivery channel.
type LocalTransport struct {
	channel *runtime.Channel
	connID  runtime.ConnID
}

func NewLocalTransport(channel *runtime.Channel) *LocalTransport {
	return &LocalTransport{
		channel: channel,
		connID:  runtime.ConnID(uuid.NewString()),
	}
}

func (t *LocalTransport) Join(ctx context.Context, key domain.ConversationKey, sink contract.EventSink) error {
	t.channel.Join(ctx, t.connID, key, sink)
	return nil
}

func (t *LocalTransport) Leave(ctx context.Context, key domain.ConversationKey) error {
	t.channel.Leave(ctx, t.connID, key)
	return nil
}

func (t *LocalTransport) Publish(ctx context.Context, msg domain.Message) error {
	t.channel.Publish(ctx, event.MessagePublished{Message: msg})
	return nil
}
