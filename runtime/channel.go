// Package runtime multiplexes conversation rooms over shared connections.
// It routes events without containing domain rules: validation and
// persistence happen before anything reaches a room.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campus-dm/contract"
	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/observability"
)

// ConnID identifies one live connection. A connection may be joined to many
// rooms at once; a room holds many connections.
type ConnID string

// Channel is the process-wide delivery fabric. There is exactly one instance
// per process and it is passed explicitly to every consumer, never held in a
// package global. Each room serializes its own membership changes and fan-out,
// so members observe every event in the same relative order while distinct
// rooms proceed fully in parallel.
type Channel struct {
	log         *slog.Logger
	sinkTimeout time.Duration
	monitor     *observability.Monitor
	taps        []contract.EventSink

	mu    sync.RWMutex
	rooms map[domain.ConversationKey]*room
}

// room is ephemeral: created on first join, discarded when the last member
// leaves. closed marks a room already removed from the table so a racing
// join re-creates a fresh one instead of resurrecting it.
type room struct {
	mu      sync.Mutex
	closed  bool
	members map[ConnID]contract.EventSink
}

func NewChannel(log *slog.Logger, sinkTimeout time.Duration, monitor *observability.Monitor) *Channel {
	return &Channel{
		log:         log,
		sinkTimeout: sinkTimeout,
		monitor:     monitor,
		rooms:       make(map[domain.ConversationKey]*room),
	}
}

// Tap registers sinks receiving every published event regardless of room
// (search indexing, audit). Must be called before the channel is in use.
func (c *Channel) Tap(sinks ...contract.EventSink) {
	c.taps = append(c.taps, sinks...)
}

// Join adds a connection to the room of the given key, creating the room
// lazily. Joining a room the connection is already in is a no-op.
func (c *Channel) Join(ctx context.Context, connID ConnID, key domain.ConversationKey, sink contract.EventSink) {
	for {
		c.mu.Lock()
		r, ok := c.rooms[key]
		if !ok {
			r = &room{members: make(map[ConnID]contract.EventSink)}
			c.rooms[key] = r
		}
		c.mu.Unlock()

		r.mu.Lock()
		if r.closed {
			// Torn down between lookup and lock; take a fresh room.
			r.mu.Unlock()
			continue
		}
		if _, joined := r.members[connID]; joined {
			r.mu.Unlock()
			return
		}
		r.members[connID] = sink
		c.fanout(ctx, r, event.MemberJoined{Key: key, At: time.Now().UTC()})
		r.mu.Unlock()
		return
	}
}

// Leave removes a connection from a room; unknown memberships are a no-op.
// Emptied rooms are discarded immediately.
func (c *Channel) Leave(ctx context.Context, connID ConnID, key domain.ConversationKey) {
	c.mu.Lock()
	r, ok := c.rooms[key]
	if !ok {
		c.mu.Unlock()
		return
	}

	r.mu.Lock()
	_, member := r.members[connID]
	delete(r.members, connID)
	if len(r.members) == 0 {
		r.closed = true
		delete(c.rooms, key)
	}
	c.mu.Unlock()

	if member && !r.closed {
		c.fanout(ctx, r, event.MemberLeft{Key: key, At: time.Now().UTC()})
	}
	r.mu.Unlock()
}

// Publish fans an event out to every member of its room, then to the taps.
// It is invoked only after the message is durable: a crash here loses live
// delivery at worst, and recipients recover through the backlog.
func (c *Channel) Publish(ctx context.Context, e event.DomainEvent) {
	c.mu.RLock()
	r := c.rooms[e.ConversationKey()]
	c.mu.RUnlock()

	if r != nil {
		r.mu.Lock()
		c.fanout(ctx, r, e)
		r.mu.Unlock()
	}

	for _, tap := range c.taps {
		if err := c.consume(ctx, tap, e); err != nil {
			c.log.Warn("Tap delivery failed", "key", e.ConversationKey(), "error", err)
		}
	}
}

// Members reports the current membership size of a room (zero if absent).
func (c *Channel) Members(key domain.ConversationKey) int {
	c.mu.RLock()
	r := c.rooms[key]
	c.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// RoomCount reports how many rooms currently exist.
func (c *Channel) RoomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

// fanout delivers to each member. Callers hold the room lock: this is the
// single point of serialization that makes per-room delivery linearizable.
func (c *Channel) fanout(ctx context.Context, r *room, e event.DomainEvent) {
	for connID, s := range r.members {
		if err := c.consume(ctx, s, e); err != nil {
			c.monitor.IncrDropped()
			c.log.Warn("Sink delivery failed",
				"conn_id", string(connID),
				"key", e.ConversationKey(),
				"error", err)
			continue
		}
		c.monitor.IncrDelivered()
	}
}

// consume bounds a single sink delivery so one slow member cannot stall a room.
func (c *Channel) consume(ctx context.Context, s contract.EventSink, e event.DomainEvent) error {
	cctx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	if err := s.Consume(cctx, e); err != nil {
		return fmt.Errorf("consume event for %s: %w", e.ConversationKey(), err)
	}
	return nil
}
