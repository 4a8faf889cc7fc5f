package server

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"campus-dm/domain"
	"campus-dm/domain/event"
	"campus-dm/protocol"
	"campus-dm/runtime"
	"campus-dm/sink"
)

// serveWS upgrades the request and runs the connection until the client
// leaves or the socket fails. One connection may join any number of rooms;
// all memberships are released on disconnect, whatever the cause.
func (h *Handler) serveWS(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	connID := runtime.ConnID(uuid.NewString())
	log := h.log.With("conn_id", string(connID))
	log.Info("Websocket connected", "remote", c.Request().RemoteAddr)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	memberSink := sink.NewBufferedSink(h.bufferSize)
	out := make(chan protocol.Outbound, h.bufferSize)
	joined := make(map[domain.ConversationKey]struct{})

	defer func() {
		// The request context is gone once the handler returns.
		cleanup := context.Background()
		for key := range joined {
			h.channel.Leave(cleanup, connID, key)
		}
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		log.Info("Websocket disconnected")
	}()

	// Single writer: room events and protocol errors funnel through out.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-memberSink.Events:
				o, ok := outboundFor(e)
				if !ok {
					continue
				}
				select {
				case out <- o:
				default:
					log.Warn("Outbound buffer full, dropping event", "key", e.ConversationKey())
				}
			}
		}
	}()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case o := <-out:
				if err := wsjson.Write(ctx, conn, o); err != nil {
					log.Warn("Websocket write failed", "error", err)
					return
				}
			}
		}
	}()

	for {
		var in protocol.Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return nil
			}
			log.Debug("Websocket read ended", "error", err)
			return nil
		}

		key, err := domain.ParseKey(in.Key)
		if err != nil {
			sendError(out, "invalid_key", err)
			continue
		}

		switch in.Type {
		case protocol.InboundJoin:
			h.channel.Join(ctx, connID, key, memberSink)
			joined[key] = struct{}{}
		case protocol.InboundLeave:
			h.channel.Leave(ctx, connID, key)
			delete(joined, key)
		case protocol.InboundSend:
			_, err := h.service.PostMessage(ctx, domain.PostMessageCommand{
				Key:      key,
				SenderID: in.SenderID,
				Text:     in.Text,
			})
			if err != nil {
				sendError(out, "post_failed", err)
			}
		default:
			sendError(out, "unknown_type", nil)
		}
	}
}

func sendError(out chan<- protocol.Outbound, code string, err error) {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	o := protocol.Outbound{
		Type:  protocol.OutboundError,
		Error: &protocol.Error{Code: code, Msg: msg},
	}
	select {
	case out <- o:
	default:
	}
}

// outboundFor translates a domain event into its wire envelope.
func outboundFor(e event.DomainEvent) (protocol.Outbound, bool) {
	switch ev := e.(type) {
	case event.MessagePublished:
		payload := protocol.FromDomain(ev.Message)
		return protocol.Outbound{
			Type:    protocol.OutboundEvent,
			Event:   protocol.EventMessage,
			Key:     string(ev.Message.Key),
			Message: &payload,
		}, true
	case event.MemberJoined:
		return protocol.Outbound{
			Type:   protocol.OutboundEvent,
			Event:  protocol.EventStatus,
			Key:    string(ev.Key),
			Status: &protocol.Status{Kind: protocol.StatusJoined, At: ev.At},
		}, true
	case event.MemberLeft:
		return protocol.Outbound{
			Type:   protocol.OutboundEvent,
			Event:  protocol.EventStatus,
			Key:    string(ev.Key),
			Status: &protocol.Status{Kind: protocol.StatusLeft, At: ev.At},
		}, true
	default:
		return protocol.Outbound{}, false
	}
}
