// Package search maintains a Bluge full-text index over stored messages.
// The indexer is attached to the delivery channel as a permanent tap, so
// every durably appended message becomes searchable without a second write
// path. Indexing is best effort: the Badger backlog stays the source of truth.
package search

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
	blugesearch "github.com/blugelabs/bluge/search"
	"github.com/google/uuid"

	"campus-dm/contract"
	"campus-dm/domain"
	"campus-dm/domain/event"
)

var _ contract.EventSink = (*Indexer)(nil)

type Indexer struct {
	log    *slog.Logger
	writer *bluge.Writer
}

func NewIndexer(path string, log *slog.Logger) (*Indexer, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Indexer{log: log, writer: writer}, nil
}

func (i *Indexer) Close() error {
	return i.writer.Close()
}

// Consume indexes published messages; membership events are ignored.
func (i *Indexer) Consume(_ context.Context, e event.DomainEvent) error {
	published, ok := e.(event.MessagePublished)
	if !ok {
		return nil
	}
	return i.Index(published.Message)
}

// Index upserts one message document, keyed by message ID.
func (i *Indexer) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewKeywordField("conversation", string(msg.Key)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField("text", msg.Text).StoreValue()).
		AddField(bluge.NewKeywordField("at", strconv.FormatInt(msg.CreatedAt.UnixNano(), 10)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search returns up to limit messages of one conversation matching the query,
// most relevant first.
func (i *Indexer) Search(ctx context.Context, key domain.ConversationKey, query string, limit int) ([]domain.Message, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(key)).SetField("conversation")).
		AddMust(bluge.NewMatchQuery(query).SetField("text"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var matches []domain.Message
	next, err := iterator.Next()
	for err == nil && next != nil {
		msg, visitErr := loadStored(next)
		if visitErr != nil {
			return nil, visitErr
		}
		matches = append(matches, msg)
		next, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// loadStored rebuilds a message from the stored fields of one match.
func loadStored(match *blugesearch.DocumentMatch) (domain.Message, error) {
	var msg domain.Message
	var visitErr error

	err := match.VisitStoredFields(func(field string, value []byte) bool {
		switch field {
		case "_id":
			id, err := uuid.Parse(string(value))
			if err != nil {
				visitErr = err
				return false
			}
			msg.ID = id
		case "conversation":
			msg.Key = domain.ConversationKey(value)
		case "sender":
			msg.SenderID = string(value)
		case "text":
			msg.Text = string(value)
		case "at":
			nano, err := strconv.ParseInt(string(value), 10, 64)
			if err != nil {
				visitErr = err
				return false
			}
			msg.CreatedAt = time.Unix(0, nano).UTC()
		}
		return true
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, visitErr
}
