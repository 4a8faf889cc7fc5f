package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/mocks"
	"campus-dm/observability"
	"campus-dm/sink"
)

func newTestChannel() *Channel {
	return NewChannel(slog.Default(), 100*time.Millisecond, observability.NewMonitor())
}

func testMessage(key domain.ConversationKey, text string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Key:       key,
		SenderID:  "a",
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func drainMessages(t *testing.T, s *sink.BufferedSink, n int) []domain.Message {
	t.Helper()
	var out []domain.Message
	for len(out) < n {
		select {
		case e := <-s.Events:
			if published, ok := e.(event.MessagePublished); ok {
				out = append(out, published.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d messages, got %d", n, len(out))
		}
	}
	return out
}

func Test_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	channel := newTestChannel()
	key := domain.ConversationKey("a|b")
	member := sink.NewBufferedSink(8)

	channel.Join(ctx, "conn-1", key, member)
	channel.Join(ctx, "conn-1", key, member)

	req.Equal(1, channel.Members(key))
	req.Equal(1, channel.RoomCount())
}

func Test_Leave_Tears_Down_Empty_Rooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	channel := newTestChannel()
	key := domain.ConversationKey("a|b")

	channel.Join(ctx, "conn-1", key, sink.NewBufferedSink(8))
	req.Equal(1, channel.RoomCount())

	channel.Leave(ctx, "conn-1", key)
	req.Equal(0, channel.RoomCount())

	// Leaving again, or leaving an unknown room, is harmless.
	channel.Leave(ctx, "conn-1", key)
	channel.Leave(ctx, "conn-9", domain.ConversationKey("x|y"))
	req.Equal(0, channel.RoomCount())
}

func Test_Publish_Reaches_Every_Member_In_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	channel := newTestChannel()
	key := domain.ConversationKey("a|b")

	first := sink.NewBufferedSink(8)
	second := sink.NewBufferedSink(8)
	channel.Join(ctx, "conn-1", key, first)
	channel.Join(ctx, "conn-2", key, second)

	sent := []domain.Message{
		testMessage(key, "one"),
		testMessage(key, "two"),
		testMessage(key, "three"),
	}
	for _, msg := range sent {
		channel.Publish(ctx, event.MessagePublished{Message: msg})
	}

	req.Equal(sent, drainMessages(t, first, len(sent)))
	req.Equal(sent, drainMessages(t, second, len(sent)))
}

func Test_Publish_Is_Scoped_To_The_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	channel := newTestChannel()

	member := sink.NewBufferedSink(8)
	channel.Join(ctx, "conn-1", domain.ConversationKey("a|b"), member)

	other := domain.ConversationKey("c|d")
	channel.Publish(ctx, event.MessagePublished{Message: testMessage(other, "elsewhere")})

	select {
	case e := <-member.Events:
		if _, ok := e.(event.MessagePublished); ok {
			t.Fatalf("received a message from another room: %v", e)
		}
	case <-time.After(50 * time.Millisecond):
	}
	req.Equal(0, channel.Members(other))
}

func Test_Publish_Survives_A_Failing_Member(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	channel := newTestChannel()
	key := domain.ConversationKey("a|b")

	failing := mocks.NewMockEventSink(ctrl)
	failing.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded).AnyTimes()
	healthy := sink.NewBufferedSink(8)

	channel.Join(ctx, "conn-bad", key, failing)
	channel.Join(ctx, "conn-good", key, healthy)

	msg := testMessage(key, "still delivered")
	channel.Publish(ctx, event.MessagePublished{Message: msg})

	got := drainMessages(t, healthy, 1)
	req.Equal(msg, got[0])
}

func Test_Taps_Receive_Events_From_All_Rooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	channel := newTestChannel()
	tap := sink.NewBufferedSink(8)
	channel.Tap(tap)

	// No member joined anywhere; the tap still sees the publish.
	msg := testMessage(domain.ConversationKey("a|b"), "indexed")
	channel.Publish(ctx, event.MessagePublished{Message: msg})

	got := drainMessages(t, tap, 1)
	req.Equal(msg, got[0])
}
