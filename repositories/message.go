//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"campus-dm/domain"
	"campus-dm/errors"
)

type IMessageRepository interface {
	Append(key domain.ConversationKey, senderID, text string) (domain.Message, error)
	ListSince(key domain.ConversationKey, since int64) ([]domain.Message, error)
	Conversations() ([]domain.ConversationKey, error)
}

// MessageRepository persists messages in BadgerDB.
// Keys are formatted as "msg:{conversationKey}:{timestamp_padded}:{uuid}" to:
//  1. Make a prefix scan a chronological range scan (19-digit zero padding
//     keeps lexicographic and numeric order aligned).
//  2. Disambiguate same-instant writes with the UUID suffix.
//
// Timestamps are server-assigned and strictly increasing per conversation
// (see nextTimestamp), so (CreatedAt, ID) is a total order for readers.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int

	mu       sync.Mutex
	lastNano map[domain.ConversationKey]int64
	now      func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		lastNano:      make(map[domain.ConversationKey]int64),
		now:           time.Now,
	}
}

// diskMessage is the stored JSON layout of a message record.
type diskMessage struct {
	ID        string `json:"id"`
	Key       string `json:"conversation_key"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Append validates, timestamps and durably persists a message.
// The write is acknowledged only after the Badger transaction commits:
// readers never observe partial writes and an accepted append survives a crash.
func (m *MessageRepository) Append(key domain.ConversationKey, senderID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}

	nano, err := m.nextTimestamp(key)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	msg := domain.Message{
		ID:        uuid.New(),
		Key:       key,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Unix(0, nano).UTC(),
	}

	value, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storageKey(msg), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return msg, nil
}

// ListSince retrieves the backlog of a conversation in ascending
// (CreatedAt, ID) order. since is the cursor of the last message already
// seen (zero for the full backlog); only strictly newer records are returned.
func (m *MessageRepository) ListSince(key domain.ConversationKey, since int64) ([]domain.Message, error) {
	prefix := []byte(recordPrefix(key))
	var raw [][]byte

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := prefix
		if since > 0 {
			// First key strictly after the cursor position.
			seek = []byte(fmt.Sprintf("%s%019d", prefix, since+1))
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !isRecordSuffix(item.Key()[len(prefix):]) {
				continue
			}
			if m.limitMessages != nil && len(raw) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			if err := item.Value(func(v []byte) error {
				raw = append(raw, append([]byte(nil), v...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		msg, err := toMessage(dm)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Conversations lists every conversation key holding at least one record.
func (m *MessageRepository) Conversations() ([]domain.ConversationKey, error) {
	seen := make(map[domain.ConversationKey]struct{})
	prefix := []byte("msg:")

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if key, ok := conversationOf(string(it.Item().Key())); ok {
				seen[key] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	keys := make([]domain.ConversationKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// nextTimestamp hands out a strictly increasing unixnano per conversation.
// The first call for a key seeds from the latest persisted record, so the
// monotonic guarantee holds across process restarts even if the wall clock
// stepped backwards in between.
func (m *MessageRepository) nextTimestamp(key domain.ConversationKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastNano[key]
	if !ok {
		persisted, err := m.latestPersisted(key)
		if err != nil {
			return 0, err
		}
		last = persisted
	}

	nano := m.now().UTC().UnixNano()
	if nano <= last {
		nano = last + 1
	}
	m.lastNano[key] = nano
	return nano, nil
}

// latestPersisted finds the newest record timestamp for a key, or zero.
func (m *MessageRepository) latestPersisted(key domain.ConversationKey) (int64, error) {
	prefix := []byte(recordPrefix(key))
	var latest int64

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		seek := append(append([]byte(nil), prefix...), []byte(strings.Repeat("9", timestampWidth))...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			rest := it.Item().Key()[len(prefix):]
			if !isRecordSuffix(rest) {
				continue
			}
			if _, err := fmt.Sscanf(string(rest[:timestampWidth]), "%d", &latest); err != nil {
				return err
			}
			return nil
		}
		return nil
	})
	return latest, err
}

const timestampWidth = 19

func recordPrefix(key domain.ConversationKey) string {
	return fmt.Sprintf("msg:%s:", key)
}

func storageKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", recordPrefix(msg.Key), msg.CreatedAt.UnixNano(), msg.ID))
}

// isRecordSuffix guards prefix scans against one conversation key being a
// textual prefix of another: a record of this conversation always continues
// with a 19-digit timestamp and a separator.
func isRecordSuffix(rest []byte) bool {
	if len(rest) <= timestampWidth || rest[timestampWidth] != ':' {
		return false
	}
	for _, c := range rest[:timestampWidth] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// conversationOf extracts the conversation key from a full storage key.
func conversationOf(storage string) (domain.ConversationKey, bool) {
	rest, ok := strings.CutPrefix(storage, "msg:")
	if !ok {
		return "", false
	}
	// Layout: {conversation}:{19 digits}:{36-char uuid}
	suffixLen := 1 + timestampWidth + 1 + 36
	if len(rest) <= suffixLen {
		return "", false
	}
	return domain.ConversationKey(rest[:len(rest)-suffixLen]), true
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:        msg.ID.String(),
		Key:       string(msg.Key),
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		Key:       domain.ConversationKey(dm.Key),
		SenderID:  dm.SenderID,
		Text:      dm.Text,
		CreatedAt: time.Unix(0, dm.CreatedAt).UTC(),
	}, nil
}
