package mailbox

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/caretqa/internal/config"
)

func newTestMailbox(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.MailboxConfig{
		BaseURL:      server.URL,
		APIKey:       "nylas-test-key",
		GrantID:      "grant-123",
		PollInterval: 10 * time.Millisecond,
	}
	return NewClient(server.Client(), cfg, zaptest.NewLogger(t))
}

func TestListMessages(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	client := newTestMailbox(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"data": [{"id": "msg-1", "subject": "Portal invitation", "body": "<a href=\"x\">x</a>"}]}`)
	}))

	messages, err := client.ListMessages(context.Background(), "Portal invitation", 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "Bearer nylas-test-key", gotAuth)
	assert.Equal(t, "/v3/grants/grant-123/messages", gotPath)
	assert.Contains(t, gotQuery, "limit=5")
	assert.Contains(t, gotQuery, "subject=Portal+invitation")
	assert.Equal(t, "msg-1", messages[0].ID)
}

func TestGetMessage(t *testing.T) {
	client := newTestMailbox(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/grants/grant-123/messages/msg-9", r.URL.Path)
		io.WriteString(w, `{"data": {"id": "msg-9", "subject": "Your verification code", "body": "code 482913"}}`)
	}))

	msg, err := client.GetMessage(context.Background(), "msg-9")
	require.NoError(t, err)
	assert.Equal(t, "msg-9", msg.ID)
	assert.Equal(t, "Your verification code", msg.Subject)
}

func TestAPIErrorStatus(t *testing.T) {
	client := newTestMailbox(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": "invalid api key"}`)
	}))

	_, err := client.ListMessages(context.Background(), "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWaitForMessage(t *testing.T) {
	t.Run("returns once a matching message arrives", func(t *testing.T) {
		var polls atomic.Int32
		client := newTestMailbox(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if polls.Add(1) < 3 {
				io.WriteString(w, `{"data": []}`)
				return
			}
			io.WriteString(w, `{"data": [{"id": "msg-2", "subject": "Invoice ready"}]}`)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		msg, err := client.WaitForMessage(ctx, "Invoice ready")
		require.NoError(t, err)
		assert.Equal(t, "msg-2", msg.ID)
		assert.GreaterOrEqual(t, polls.Load(), int32(3))
	})

	t.Run("gives up at the deadline", func(t *testing.T) {
		client := newTestMailbox(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"data": []}`)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.WaitForMessage(ctx, "Never arrives")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
