package gmail

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/model"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, onUnauthorized func()) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:        srv.URL,
		Tokens:         oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		OnUnauthorized: onUnauthorized,
		Concurrency:    2,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListRecentFetchesMetadataInOrder(t *testing.T) {
	var gotMax string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/me/messages":
			gotMax = r.URL.Query().Get("maxResults")
			assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
			writeJSON(w, map[string]interface{}{
				"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}},
			})
		case "/users/me/messages/m1":
			assert.Equal(t, "metadata", r.URL.Query().Get("format"))
			writeJSON(w, map[string]interface{}{
				"id":      "m1",
				"snippet": "first",
				"payload": map[string]interface{}{
					"headers": []map[string]string{
						{"name": "Subject", "value": "Hello"},
						{"name": "From", "value": "ann@example.com"},
						{"name": "Date", "value": "Mon, 1 Jan 2024 10:00:00 +0000"},
					},
				},
			})
		case "/users/me/messages/m2":
			writeJSON(w, map[string]interface{}{"id": "m2", "payload": map[string]interface{}{}})
		default:
			http.NotFound(w, r)
		}
	}, nil)

	msgs, err := c.ListRecent(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, "15", gotMax)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageSummary{
		ID: "m1", Subject: "Hello", From: "ann@example.com",
		Date: "Mon, 1 Jan 2024 10:00:00 +0000", Snippet: "first",
	}, msgs[0])
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, model.NoSubject, msgs[1].Subject)
	assert.Equal(t, model.NoSender, msgs[1].From)
	assert.Equal(t, model.NoDate, msgs[1].Date)
}

func TestListRecentEmptyInbox(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{})
	}, nil)

	msgs, err := c.ListRecent(t.Context(), 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReadPrefersPlainTextInNestedParts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m9", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(w, map[string]interface{}{
			"id": "m9",
			"payload": map[string]interface{}{
				"mimeType": "multipart/mixed",
				"headers": []map[string]string{
					{"name": "Subject", "value": "Report"},
					{"name": "To", "value": "me@example.com"},
				},
				"parts": []map[string]interface{}{
					{
						"mimeType": "multipart/alternative",
						"parts": []map[string]interface{}{
							{"mimeType": "text/html", "body": map[string]string{"data": b64("<p>hi</p>")}},
							{"mimeType": "text/plain", "body": map[string]string{"data": b64("hi there")}},
						},
					},
				},
			},
		})
	}, nil)

	msg, err := c.Read(t.Context(), "m9")
	require.NoError(t, err)
	assert.Equal(t, "hi there", msg.Body)
	assert.Equal(t, "Report", msg.Subject)
	assert.Equal(t, "me@example.com", msg.To)
	assert.Equal(t, model.NoSender, msg.From)
}

func TestReadFallsBackToPlaceholderBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": "m1", "payload": map[string]interface{}{"mimeType": "multipart/mixed"}})
	}, nil)

	msg, err := c.Read(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, model.NoBody, msg.Body)
}

func TestReadNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, nil)

	_, err := c.Read(t.Context(), "missing")
	assert.ErrorIs(t, err, mailbox.ErrNotFound)
}

func TestSendEncodesRawMessage(t *testing.T) {
	var raw string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/me/messages/send", r.URL.Path)
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw = req.Raw
		writeJSON(w, map[string]string{"id": "sent-1"})
	}, nil)

	receipt, err := c.Send(t.Context(), model.Draft{To: "bob@example.com", Subject: "Lunch", Body: "Noon?"})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", receipt.MessageID)

	decoded, err := mailbox.DecodeBase64URL(raw)
	require.NoError(t, err)
	assert.Contains(t, decoded, "To: <bob@example.com>")
	assert.Contains(t, decoded, "Subject: Lunch")
	assert.Contains(t, decoded, "text/plain; charset=utf-8")

	body, err := mailbox.ParseBody(strings.NewReader(decoded))
	require.NoError(t, err)
	assert.Equal(t, "Noon?", body)
}

func TestSendRejectsEmptyBodyWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, nil)

	_, err := c.Send(t.Context(), model.Draft{To: "bob@example.com", Subject: "Lunch"})
	var verr *mailbox.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"body"}, verr.Fields)
	assert.Zero(t, calls.Load())
}

func TestTrashPostsToTrashEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/me/messages/m3/trash", r.URL.Path)
		writeJSON(w, map[string]string{"id": "m3"})
	}, nil)

	receipt, err := c.Trash(t.Context(), "m3")
	require.NoError(t, err)
	assert.Equal(t, "m3", receipt.ID)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	cleared := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func() { cleared = true })

	_, err := c.ListRecent(t.Context(), 10)
	require.Error(t, err)
	assert.True(t, mailbox.IsUnauthorized(err))
	assert.True(t, cleared)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)

	provider := auth.NewProvider(model.OAuthConfig{TokenURL: srv.URL}, "")
	c := New(Config{BaseURL: srv.URL, Tokens: provider.TokenSource(t.Context(), auth.NewState(nil))})

	_, err := c.Trash(t.Context(), "m1")
	assert.True(t, mailbox.IsUnauthorized(err))
	assert.Zero(t, calls.Load())
}

func TestRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]string{"id": "m1"})
	}, nil)

	_, err := c.Trash(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
