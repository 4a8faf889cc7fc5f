package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"campus-dm/contract"
	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/protocol"
	"campus-dm/session"
)

var _ session.Transport = (*WSTransport)(nil)

// WSTransport is the live half of the remote client. It keeps one websocket
// to the server and demultiplexes incoming envelopes to the sink joined per
// conversation. When the socket drops, onDrop fires once so the owner can
// switch its sessions to polling.
type WSTransport struct {
	log    *slog.Logger
	wsURL  string
	onDrop func()

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	sinks  map[domain.ConversationKey]contract.EventSink
}

// NewWSTransport targets a websocket URL such as "ws://localhost:8080/ws".
// onDrop may be nil.
func NewWSTransport(log *slog.Logger, wsURL string, onDrop func()) *WSTransport {
	return &WSTransport{
		log:    log,
		wsURL:  wsURL,
		onDrop: onDrop,
		sinks:  make(map[domain.ConversationKey]contract.EventSink),
	}
}

// Join dials lazily on the first room and announces the membership. The same
// connection carries every joined conversation.
func (t *WSTransport) Join(ctx context.Context, key domain.ConversationKey, sink contract.EventSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		conn, _, err := websocket.Dial(ctx, t.wsURL, nil)
		if err != nil {
			return err
		}
		t.conn = conn
		readCtx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		go t.readLoop(readCtx, conn)
	}

	if err := wsjson.Write(ctx, t.conn, protocol.Inbound{Type: protocol.InboundJoin, Key: string(key)}); err != nil {
		return err
	}
	t.sinks[key] = sink
	return nil
}

func (t *WSTransport) Leave(ctx context.Context, key domain.ConversationKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sinks, key)
	if t.conn == nil {
		return nil
	}
	if err := wsjson.Write(ctx, t.conn, protocol.Inbound{Type: protocol.InboundLeave, Key: string(key)}); err != nil {
		return err
	}
	if len(t.sinks) == 0 {
		t.closeLocked(websocket.StatusNormalClosure, "no rooms left")
	}
	return nil
}

// Publish is a no-op: the REST append already triggers the server-side
// fan-out, and announcing it again would only produce a duplicate that the
// timeline has to discard.
func (t *WSTransport) Publish(context.Context, domain.Message) error {
	return nil
}

// Close tears the connection down. Sessions still open fall back to polling
// through their onDrop notification.
func (t *WSTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked(websocket.StatusNormalClosure, "closing")
}

func (t *WSTransport) closeLocked(code websocket.StatusCode, reason string) {
	if t.conn == nil {
		return
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	_ = t.conn.Close(code, reason)
	t.conn = nil
}

// readLoop dispatches server envelopes until the socket fails or is closed.
func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out protocol.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if ctx.Err() == nil {
				t.log.Warn("Websocket read failed", "error", err)
				t.dropped(conn)
			}
			return
		}
		t.dispatch(ctx, out)
	}
}

func (t *WSTransport) dispatch(ctx context.Context, out protocol.Outbound) {
	if out.Type == protocol.OutboundError {
		t.log.Warn("Server reported protocol error", "code", out.Error.Code, "msg", out.Error.Msg)
		return
	}

	key := domain.ConversationKey(out.Key)
	t.mu.Lock()
	sink := t.sinks[key]
	t.mu.Unlock()
	if sink == nil {
		return
	}

	var e event.DomainEvent
	switch out.Event {
	case protocol.EventMessage:
		msg, err := out.Message.ToDomain()
		if err != nil {
			t.log.Warn("Discarding malformed message envelope", "error", err)
			return
		}
		e = event.MessagePublished{Message: msg}
	case protocol.EventStatus:
		if out.Status.Kind == protocol.StatusJoined {
			e = event.MemberJoined{Key: key, At: out.Status.At}
		} else {
			e = event.MemberLeft{Key: key, At: out.Status.At}
		}
	default:
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sink.Consume(cctx, e); err != nil {
		t.log.Warn("Sink rejected event", "key", string(key), "error", err)
	}
}

// dropped clears the failed connection and notifies the owner once.
func (t *WSTransport) dropped(conn *websocket.Conn) {
	t.mu.Lock()
	stillCurrent := t.conn == conn
	if stillCurrent {
		t.closeLocked(websocket.StatusAbnormalClosure, "read failed")
	}
	t.mu.Unlock()

	if stillCurrent && t.onDrop != nil {
		t.onDrop()
	}
}
