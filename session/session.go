// Package session drives one end of a conversation: it owns the local
// timeline, the live subscription, and the polling fallback used while the
// live channel is down. It is transport agnostic and works the same over an
// in-process channel or a remote server.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campus-dm/contract"
	"campus-dm/domain"
	"campus-dm/domain/event"
)

// Store is the durable side of a session: append one message, list the
// backlog after a cursor.
type Store interface {
	Append(ctx context.Context, key domain.ConversationKey, senderID, text string) (domain.Message, error)
	ListSince(ctx context.Context, key domain.ConversationKey, since int64) ([]domain.Message, error)
}

// Transport is the live side: room membership and post-append publication.
type Transport interface {
	Join(ctx context.Context, key domain.ConversationKey, sink contract.EventSink) error
	Leave(ctx context.Context, key domain.ConversationKey) error
	Publish(ctx context.Context, msg domain.Message) error
}

var _ contract.EventSink = (*Session)(nil)

// Session is one participant's handle on one conversation.
type Session struct {
	log          *slog.Logger
	store        Store
	transport    Transport
	key          domain.ConversationKey
	selfID       string
	pollInterval time.Duration
	backoff      Backoff

	timeline *Timeline
	updates  chan domain.Message

	mu         sync.Mutex
	state      State
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func New(log *slog.Logger, store Store, transport Transport,
	key domain.ConversationKey, selfID string,
	pollInterval time.Duration, backoff Backoff) *Session {
	return &Session{
		log:          log.With("key", string(key), "self", selfID),
		store:        store,
		transport:    transport,
		key:          key,
		selfID:       selfID,
		pollInterval: pollInterval,
		backoff:      backoff,
		timeline:     NewTimeline(),
		updates:      make(chan domain.Message, 256),
	}
}

// Open loads the backlog and joins the live room. It is valid only from the
// closed state; on failure the session returns to closed.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("open: session is %s", s.state)
	}
	s.state = StateOpening
	s.mu.Unlock()

	if err := s.catchUp(ctx); err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("load backlog: %w", err)
	}

	err := s.backoff.retry(ctx, s.log, func(ctx context.Context) error {
		return s.transport.Join(ctx, s.key, s)
	})
	if err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("join room: %w", err)
	}

	s.setState(StateJoined)
	s.log.Info("Session opened", "backlog", s.timeline.Len())
	return nil
}

// Send appends the text durably and then announces it on the live channel.
// An empty text is rejected by the store and nothing is published.
func (s *Session) Send(ctx context.Context, text string) (domain.Message, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == StateClosed || state == StateOpening {
		return domain.Message{}, fmt.Errorf("send: session is %s", state)
	}

	var msg domain.Message
	err := s.backoff.retry(ctx, s.log, func(ctx context.Context) error {
		var err error
		msg, err = s.store.Append(ctx, s.key, s.selfID, text)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}

	s.observe(msg)

	// Publication is best effort: the message is already durable and other
	// participants will pick it up from the backlog if live delivery fails.
	if err := s.transport.Publish(ctx, msg); err != nil {
		s.log.Warn("Live publish failed", "id", msg.ID, "error", err)
	}
	return msg, nil
}

// Consume feeds live events into the timeline. Membership events only change
// presence and are logged; duplicates of already-seen messages are dropped.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	switch ev := e.(type) {
	case event.MessagePublished:
		if ev.Message.Key == s.key {
			s.observe(ev.Message)
		}
	case event.MemberJoined:
		s.log.Debug("Peer joined", "at", ev.At)
	case event.MemberLeft:
		s.log.Debug("Peer left", "at", ev.At)
	}
	return nil
}

// MarkDisconnected records the loss of the live channel and starts the
// polling fallback. Calling it while not joined is a no-op.
func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateJoined {
		return
	}
	s.state = StateDisconnected
	s.startPollingLocked()
	s.log.Warn("Live channel lost, polling backlog", "interval", s.pollInterval)
}

// Reconnect reconciles the backlog and rejoins the live room after a
// disconnection. On success polling stops.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("reconnect: session is %s", s.state)
	}
	s.mu.Unlock()

	if err := s.catchUp(ctx); err != nil {
		return fmt.Errorf("reconcile backlog: %w", err)
	}
	err := s.backoff.retry(ctx, s.log, func(ctx context.Context) error {
		return s.transport.Join(ctx, s.key, s)
	})
	if err != nil {
		return fmt.Errorf("rejoin room: %w", err)
	}

	s.mu.Lock()
	s.stopPollingLocked()
	s.state = StateJoined
	s.mu.Unlock()
	s.log.Info("Session reconnected")
	return nil
}

// Close leaves the room and ends the session. It is idempotent; the timeline
// stays readable afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasLive := s.state == StateJoined
	s.stopPollingLocked()
	s.state = StateClosed
	s.mu.Unlock()

	if wasLive {
		if err := s.transport.Leave(ctx, s.key); err != nil {
			s.log.Warn("Leave failed on close", "error", err)
		}
	}
	s.log.Info("Session closed")
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the timeline so far, oldest first.
func (s *Session) Messages() []domain.Message {
	return s.timeline.Messages()
}

// Updates streams messages as the timeline grows, both own and peer ones.
// The channel is never closed; readers stop when they close the session.
func (s *Session) Updates() <-chan domain.Message {
	return s.updates
}

func (s *Session) Key() domain.ConversationKey {
	return s.key
}

// catchUp lists everything newer than the timeline cursor and merges it in.
func (s *Session) catchUp(ctx context.Context) error {
	var backlog []domain.Message
	err := s.backoff.retry(ctx, s.log, func(ctx context.Context) error {
		var err error
		backlog, err = s.store.ListSince(ctx, s.key, s.timeline.Cursor())
		return err
	})
	if err != nil {
		return err
	}
	for _, msg := range s.timeline.Merge(backlog) {
		s.notify(msg)
	}
	return nil
}

// observe records one live message and notifies the reader if it was new.
func (s *Session) observe(msg domain.Message) {
	if s.timeline.Add(msg) {
		s.notify(msg)
	}
}

// notify never blocks: a reader that stopped draining loses update signals
// but the timeline itself remains complete.
func (s *Session) notify(msg domain.Message) {
	select {
	case s.updates <- msg:
	default:
		s.log.Warn("Updates channel full, dropping notification", "id", msg.ID)
	}
}

func (s *Session) startPollingLocked() {
	if s.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})
	go s.poll(ctx, s.pollDone)
}

func (s *Session) stopPollingLocked() {
	if s.pollCancel == nil {
		return
	}
	s.pollCancel()
	<-s.pollDone
	s.pollCancel = nil
	s.pollDone = nil
}

// poll periodically re-reads the backlog while the live channel is down.
func (s *Session) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backlog, err := s.store.ListSince(ctx, s.key, s.timeline.Cursor())
			if err != nil {
				s.log.Warn("Backlog poll failed", "error", err)
				continue
			}
			for _, msg := range s.timeline.Merge(backlog) {
				s.notify(msg)
			}
		}
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
