// Package client is the Go client of the server API. RESTClient covers the
// durable operations, WSTransport the live channel; together they satisfy the
// session interfaces so a remote session behaves exactly like an in-process
// one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"campus-dm/domain"
	"campus-dm/errors"
	"campus-dm/protocol"
	"campus-dm/session"
)

var _ session.Store = (*RESTClient)(nil)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient targets a server base URL such as "http://localhost:8080".
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RESTClient) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// Append posts one message. The server masks, timestamps and persists it; the
// returned message carries the authoritative timestamp and ID.
func (c *RESTClient) Append(ctx context.Context, key domain.ConversationKey, senderID, text string) (domain.Message, error) {
	body, err := json.Marshal(protocol.PostMessageRequest{SenderID: senderID, Text: text})
	if err != nil {
		return domain.Message{}, err
	}

	endpoint := c.baseURL + "/conversations/" + url.PathEscape(string(key)) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var posted protocol.Message
	if err := c.do(req, http.StatusCreated, &posted); err != nil {
		return domain.Message{}, err
	}
	return posted.ToDomain()
}

// ListSince fetches the backlog strictly after the cursor, oldest first.
func (c *RESTClient) ListSince(ctx context.Context, key domain.ConversationKey, since int64) ([]domain.Message, error) {
	endpoint := c.baseURL + "/conversations/" + url.PathEscape(string(key)) +
		"/messages?since=" + strconv.FormatInt(since, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page protocol.MessagesResponse
	if err := c.do(req, http.StatusOK, &page); err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(page.Messages))
	for _, wire := range page.Messages {
		msg, err := wire.ToDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Search queries a conversation's history on the server.
func (c *RESTClient) Search(ctx context.Context, key domain.ConversationKey, query string, limit int) ([]domain.Message, error) {
	endpoint := c.baseURL + "/conversations/" + url.PathEscape(string(key)) +
		"/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		endpoint += "&limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page protocol.MessagesResponse
	if err := c.do(req, http.StatusOK, &page); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(page.Messages))
	for _, wire := range page.Messages {
		msg, err := wire.ToDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *RESTClient) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError maps HTTP failures back to the domain sentinels so callers can
// apply the same error handling as against a local store.
func statusError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", errors.ErrInvalidIdentifier, detail)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", errors.ErrEmptyMessage, detail)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", errors.ErrStoreUnavailable, resp.StatusCode, detail)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}
}
