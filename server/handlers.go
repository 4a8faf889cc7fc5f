package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"campus-dm/domain"
	"campus-dm/errors"
	"campus-dm/observability"
	"campus-dm/protocol"
	"campus-dm/runtime"
	"campus-dm/services"
)

type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	channel    *runtime.Channel
	monitor    *observability.Monitor
	bufferSize int
}

func (h *Handler) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Latest())
}

// postMessage appends one message to a conversation. The key in the path must
// already be canonical; clients derive it from the two participant IDs.
func (h *Handler) postMessage(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return httpError(err)
	}

	var body protocol.PostMessageRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	msg, err := h.service.PostMessage(c.Request().Context(), domain.PostMessageCommand{
		Key:      key,
		SenderID: body.SenderID,
		Text:     body.Text,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, protocol.FromDomain(msg))
}

// listMessages returns the backlog strictly after the since cursor, oldest
// first, together with the cursor to resume from.
func (h *Handler) listMessages(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return httpError(err)
	}
	since, err := sinceParam(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	messages, err := h.service.GetMessages(c.Request().Context(), domain.ListMessagesCommand{
		Key:   key,
		Since: since,
	})
	if err != nil {
		return httpError(err)
	}

	cursor := since
	if len(messages) > 0 {
		cursor = messages[len(messages)-1].Cursor()
	}
	return c.JSON(http.StatusOK, protocol.MessagesResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) protocol.Message {
			return protocol.FromDomain(m)
		}),
		Cursor: cursor,
	})
}

func (h *Handler) searchMessages(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return httpError(err)
	}
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	matches, err := h.service.SearchMessages(c.Request().Context(), domain.SearchMessagesCommand{
		Key:   key,
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, protocol.MessagesResponse{
		Messages: lo.Map(matches, func(m domain.Message, _ int) protocol.Message {
			return protocol.FromDomain(m)
		}),
	})
}

// keyParam extracts and validates the conversation key of the route. The
// separator is routinely percent-encoded by clients, so unescape first.
func keyParam(c echo.Context) (domain.ConversationKey, error) {
	raw := c.Param("key")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return domain.ParseKey(raw)
}

func sinceParam(c echo.Context) (int64, error) {
	raw := c.QueryParam("since")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(errors.MapToHTTPStatus(err), err.Error())
}
