package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"campus-dm/moderation"
	"campus-dm/observability"
	"campus-dm/protocol"
	"campus-dm/repositories"
	"campus-dm/runtime"
	"campus-dm/search"
	"campus-dm/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	indexer, err := search.NewIndexer(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexer.Close() })

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*', slog.Default())
	require.NoError(t, err)

	monitor := observability.NewMonitor()
	channel := runtime.NewChannel(slog.Default(), 100*time.Millisecond, monitor)
	channel.Tap(indexer)
	repo := repositories.NewMessageRepository(db, slog.Default(), nil)
	service := services.NewChatService(slog.Default(), repo, moderator, channel, indexer)

	return New(slog.Default(), "127.0.0.1:0", service, channel, monitor, 16)
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func postMessage(t *testing.T, srv *Server, key, sender, text string) protocol.Message {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/conversations/"+key+"/messages",
		protocol.PostMessageRequest{SenderID: sender, Text: text})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var posted protocol.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))
	return posted
}

func Test_Post_Then_List_Round_Trip(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	first := postMessage(t, srv, "s1|t7", "s1", "hello")
	second := postMessage(t, srv, "s1|t7", "t7", "hi back")
	req.Less(first.Cursor, second.Cursor)

	rec := doJSON(t, srv, http.MethodGet, "/conversations/s1|t7/messages", nil)
	req.Equal(http.StatusOK, rec.Code)

	var page protocol.MessagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Len(page.Messages, 2)
	req.Equal(first.ID, page.Messages[0].ID)
	req.Equal(second.ID, page.Messages[1].ID)
	req.Equal(second.Cursor, page.Cursor)
}

func Test_List_Resumes_From_The_Cursor(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	first := postMessage(t, srv, "a|b", "a", "one")
	second := postMessage(t, srv, "a|b", "a", "two")

	rec := doJSON(t, srv, http.MethodGet,
		"/conversations/a|b/messages?since="+strconv.FormatInt(first.Cursor, 10), nil)
	req.Equal(http.StatusOK, rec.Code)

	var page protocol.MessagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Len(page.Messages, 1)
	req.Equal(second.ID, page.Messages[0].ID)
}

func Test_Post_Masks_Disallowed_Words(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	posted := postMessage(t, srv, "s1|t7", "s1", "you idiot")
	req.Equal("you *****", posted.Text)
}

func Test_Post_Rejects_Empty_Text(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/conversations/s1|t7/messages",
		protocol.PostMessageRequest{SenderID: "s1", Text: "   "})
	req.Equal(http.StatusUnprocessableEntity, rec.Code)

	// The store stays empty.
	list := doJSON(t, srv, http.MethodGet, "/conversations/s1|t7/messages", nil)
	var page protocol.MessagesResponse
	req.NoError(json.Unmarshal(list.Body.Bytes(), &page))
	req.Empty(page.Messages)
}

func Test_Post_Requires_A_Sender(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/conversations/s1|t7/messages",
		protocol.PostMessageRequest{Text: "hello"})
	req.Equal(http.StatusBadRequest, rec.Code)
}

func Test_Routes_Reject_Non_Canonical_Keys(t *testing.T) {
	tests := []struct {
		description string
		key         string
	}{
		{"Should reject unsorted halves", "t7|s1"},
		{"Should reject a single identifier", "s1"},
		{"Should reject empty halves", "|t7"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			srv := newTestServer(t)
			rec := doJSON(t, srv, http.MethodGet, "/conversations/"+tt.key+"/messages", nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func Test_Search_Finds_Indexed_Messages(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	posted := postMessage(t, srv, "s1|t7", "t7", "chemistry lab at nine")
	postMessage(t, srv, "s1|t7", "s1", "see you there")
	postMessage(t, srv, "a|b", "a", "different lab, different room")

	rec := doJSON(t, srv, http.MethodGet, "/conversations/s1|t7/search?q=lab", nil)
	req.Equal(http.StatusOK, rec.Code)

	var page protocol.MessagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Len(page.Messages, 1)
	req.Equal(posted.ID, page.Messages[0].ID)
}

func Test_Search_Requires_A_Query(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/conversations/s1|t7/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Healthz_Serves_The_Latest_Snapshot(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	req.Equal(http.StatusOK, rec.Code)

	var stats observability.Stats
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
}
