package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"campus-dm/domain"
)

func timelineMessage(nano int64, text string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Key:       domain.ConversationKey("a|b"),
		SenderID:  "a",
		Text:      text,
		CreatedAt: time.Unix(0, nano).UTC(),
	}
}

func Test_Add_Ignores_Duplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	msg := timelineMessage(10, "hello")

	req.True(timeline.Add(msg))
	req.False(timeline.Add(msg))
	req.Equal(1, timeline.Len())
}

func Test_Merge_Returns_Only_New_Messages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	first := timelineMessage(10, "one")
	second := timelineMessage(20, "two")
	third := timelineMessage(30, "three")

	timeline.Add(first)

	added := timeline.Merge([]domain.Message{first, second, third})
	req.Equal([]domain.Message{second, third}, added)
	req.Equal([]domain.Message{first, second, third}, timeline.Messages())
}

func Test_Late_Arrivals_Are_Reordered(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	older := timelineMessage(10, "older")
	newer := timelineMessage(20, "newer")

	timeline.Add(newer)
	timeline.Add(older)

	req.Equal([]domain.Message{older, newer}, timeline.Messages())
	req.Equal(newer.Cursor(), timeline.Cursor())
}

func Test_Cursor_Of_Empty_Timeline_Is_Zero(t *testing.T) {
	require.Zero(t, NewTimeline().Cursor())
}

func Test_Equal_Timestamps_Order_By_ID(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	a := timelineMessage(10, "same instant")
	b := timelineMessage(10, "same instant")

	timeline.Add(a)
	timeline.Add(b)

	got := timeline.Messages()
	req.Len(got, 2)
	req.True(got[0].ID.String() < got[1].ID.String())
}
