package handlers

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/realtime"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer serves the fixture's app on a loopback port and returns its ws base URL.
func startServer(t *testing.T, f *apiFixture) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(ln) }()
	t.Cleanup(func() {
		f.cancel()
		_ = f.app.ShutdownWithTimeout(time.Second)
	})
	return "ws://" + ln.Addr().String()
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocket_UnauthorizedCloseCode(t *testing.T) {
	f := newAPIFixture(t)
	base := startServer(t, f)

	conn := dial(t, base+"/ws/online?token=forged")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()

	var ce *gws.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	assert.Equal(t, realtime.CloseUnauthorized, ce.Code)
	assert.Empty(t, f.registry.Members(realtime.Online))
}

func TestWebSocket_ChatRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	base := startServer(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	conv, err := f.chats.GetOrCreateConversation(ctx, alice, bob)
	require.NoError(t, err)
	path := "/ws/messages/" + itoa(conv.ID)

	a := dial(t, base+path+"?token="+tokenFor(t, alice))
	b := dial(t, base+path+"?access_token="+tokenFor(t, bob))
	ch := realtime.Messages(conv.ID)
	require.Eventually(t, func() bool {
		return f.registry.IsRegistered(ch, alice) && f.registry.IsRegistered(ch, bob)
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, models.EventPong, readEvent(t, a)["type"])

	require.NoError(t, a.WriteJSON(map[string]any{"type": "message", "content": "over the wire"}))
	ev := readEvent(t, b)
	assert.Equal(t, models.EventNewMessage, ev["type"])
	assert.Equal(t, "over the wire", ev["content"])
	assert.EqualValues(t, alice, ev["sender_id"])

	require.NoError(t, b.WriteJSON(map[string]any{"type": "typing", "is_typing": true}))
	ev = readEvent(t, a)
	if ev["type"] == models.EventNewMessage {
		ev = readEvent(t, a)
	}
	assert.Equal(t, models.EventTyping, ev["type"])
	assert.EqualValues(t, bob, ev["user_id"])
}

func TestWebSocket_BadConversationID(t *testing.T) {
	f := newAPIFixture(t)
	base := startServer(t, f)

	_, resp, err := gws.DefaultDialer.Dial(base+"/ws/messages/abc?token="+tokenFor(t, alice), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebSocket_ShutdownClosesSessions(t *testing.T) {
	f := newAPIFixture(t)
	base := startServer(t, f)

	conn := dial(t, base+"/ws/feed?token="+tokenFor(t, alice))
	require.Eventually(t, func() bool { return f.registry.IsRegistered(realtime.Feed, alice) }, 2*time.Second, 5*time.Millisecond)

	f.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var ce *gws.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	assert.Equal(t, gws.CloseGoingAway, ce.Code)
	require.Eventually(t, func() bool { return !f.registry.IsRegistered(realtime.Feed, alice) }, 2*time.Second, 5*time.Millisecond)
}
