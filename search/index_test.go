package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"campus-dm/domain"
	"campus-dm/domain/event"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	indexer, err := NewIndexer(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexer.Close() })
	return indexer
}

func indexedMessage(key domain.ConversationKey, sender, text string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Key:       key,
		SenderID:  sender,
		Text:      text,
		CreatedAt: time.Now().UTC().Truncate(time.Nanosecond),
	}
}

func Test_Search_Is_Scoped_To_One_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)

	ours := domain.ConversationKey("s1|t7")
	theirs := domain.ConversationKey("a|b")
	wanted := indexedMessage(ours, "t7", "the chemistry lab starts at nine")
	req.NoError(indexer.Index(wanted))
	req.NoError(indexer.Index(indexedMessage(ours, "s1", "see you tomorrow")))
	req.NoError(indexer.Index(indexedMessage(theirs, "a", "another lab session entirely")))

	matches, err := indexer.Search(ctx, ours, "lab", 10)
	req.NoError(err)
	req.Len(matches, 1)
	req.Equal(wanted.ID, matches[0].ID)
	req.Equal(wanted.Key, matches[0].Key)
	req.Equal(wanted.SenderID, matches[0].SenderID)
	req.Equal(wanted.Text, matches[0].Text)
	req.True(wanted.CreatedAt.Equal(matches[0].CreatedAt))
}

func Test_Search_Honors_The_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)
	key := domain.ConversationKey("s1|t7")

	for i := 0; i < 5; i++ {
		req.NoError(indexer.Index(indexedMessage(key, "s1", "homework reminder")))
	}

	matches, err := indexer.Search(ctx, key, "homework", 2)
	req.NoError(err)
	req.Len(matches, 2)
}

func Test_Consume_Indexes_Published_Messages_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)
	key := domain.ConversationKey("s1|t7")

	msg := indexedMessage(key, "s1", "field trip on friday")
	req.NoError(indexer.Consume(ctx, event.MessagePublished{Message: msg}))
	req.NoError(indexer.Consume(ctx, event.MemberJoined{Key: key, At: time.Now()}))

	matches, err := indexer.Search(ctx, key, "friday", 10)
	req.NoError(err)
	req.Len(matches, 1)
	req.Equal(msg.ID, matches[0].ID)
}
