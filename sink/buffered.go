// Package sink provides event consumers attachable to the delivery channel.
package sink

import (
	"context"
	"fmt"

	"campus-dm/domain/event"
	"campus-dm/errors"
)

// BufferedSink bridges the channel's fan-out to a consumer goroutine
// (a websocket write loop, a session run loop). Consume never blocks the
// room longer than the publish timeout: a full buffer is reported as a
// degraded-delivery error and the member recovers via backlog.
type BufferedSink struct {
	Events chan event.DomainEvent
}

func NewBufferedSink(size int) *BufferedSink {
	return &BufferedSink{Events: make(chan event.DomainEvent, size)}
}

func (s *BufferedSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrChannelUnavailable, ctx.Err())
	}
}

// TryConsume is the non-blocking variant used where dropping is acceptable
// (permanent taps such as telemetry).
func (s *BufferedSink) TryConsume(e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	default:
		return fmt.Errorf("%w: sink buffer full", errors.ErrChannelUnavailable)
	}
}
