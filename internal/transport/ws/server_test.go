package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/hub"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
)

const ownerKey = "owner-key"

// sessionOwners maps session ids to the api key of their owner.
type sessionOwners map[string]string

func (o sessionOwners) AuthorizeWatch(_ context.Context, apiKey, authorization, sessionID string) error {
	if authorization == "Bearer owner-token" {
		apiKey = ownerKey
	}
	if apiKey == "" {
		return service.ErrUnauthorized
	}
	if o[sessionID] != apiKey {
		return service.ErrSessionNotFound
	}
	return nil
}

func ownerHeader() http.Header {
	return http.Header{"X-Api-Key": {ownerKey}}
}

func newWatchServer(t *testing.T, origins []string) (*hub.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub()
	go h.Run(ctx)

	e := echo.New()
	owners := sessionOwners{"thread-1": ownerKey, "thread-2": "someone-else"}
	e.GET("/ws/sessions/:id", NewServer(h, owners, origins).HandleWatch)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestWatcherReceivesThreadEvents(t *testing.T) {
	h, base := newWatchServer(t, []string{"http://localhost:3000"})
	conn := dial(t, base+"thread-1", ownerHeader())

	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, TypeWatching, ack.Type)
	assert.Equal(t, "thread-1", ack.ThreadID)

	require.Eventually(t, func() bool { return h.HasWatchers("thread-1") }, 2*time.Second, 10*time.Millisecond)
	h.Broadcast("thread-2", []byte(`{"type":"RUN_STARTED","runId":"other"}`))
	h.Broadcast("thread-1", []byte(`{"type":"RUN_STARTED","runId":"r1"}`))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"RUN_STARTED","runId":"r1"}`, string(data))
}

func TestWatcherPingAndUnknownMessages(t *testing.T) {
	_, base := newWatchServer(t, nil)
	conn := dial(t, base+"thread-1", ownerHeader())

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	require.NoError(t, conn.WriteJSON(Message{Type: TypePing}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypePong, msg.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorCodeInvalidMessage, msg.Code)

	require.NoError(t, conn.WriteJSON(Message{Type: "decide"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "unknown message type: decide", msg.Message)
}

func TestWatcherRejectsForeignOrigin(t *testing.T) {
	_, base := newWatchServer(t, []string{"http://localhost:3000"})
	_, resp, err := websocket.DefaultDialer.Dial(base+"thread-1", http.Header{"Origin": {"http://evil.example"}, "X-Api-Key": {ownerKey}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWatcherRequiresSessionOwner(t *testing.T) {
	h, base := newWatchServer(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(base+"thread-1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	_, resp, err = websocket.DefaultDialer.Dial(base+"thread-2", ownerHeader())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Zero(t, h.ConnectionCount())
}

func TestWatcherAcceptsQueryCredentials(t *testing.T) {
	_, base := newWatchServer(t, nil)

	for _, query := range []string{"?api_key=" + ownerKey, "?token=owner-token"} {
		conn := dial(t, base+"thread-1"+query, nil)
		var ack Message
		require.NoError(t, conn.ReadJSON(&ack))
		assert.Equal(t, TypeWatching, ack.Type, query)
	}
}
