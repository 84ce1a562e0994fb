package adapter

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brobbot/internal/bus"
)

func dialRoom(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome WSMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "status", welcome.Type)
	require.Equal(t, room, welcome.Room)
	return conn
}

func TestWebSocket_InboundPublished(t *testing.T) {
	ws := NewWebSocket(WebSocketConfig{Logger: testLogger()})
	mb := bus.New(4, testLogger())
	ws.Attach(mb)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	conn := dialRoom(t, srv, "lobby")
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "message", Content: "hal ping", UserID: "u1", UserName: "dave"}))

	select {
	case m := <-mb.Subscribe():
		assert.Equal(t, "websocket", m.Adapter)
		assert.Equal(t, "lobby", m.Room)
		assert.Equal(t, "dave", m.User.Name)
		assert.Equal(t, "hal ping", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message not published")
	}
}

func TestWebSocket_OutboundToRoomOnly(t *testing.T) {
	ws := NewWebSocket(WebSocketConfig{Logger: testLogger()})
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()

	lobby := dialRoom(t, srv, "lobby")
	other := dialRoom(t, srv, "other")

	ctx := context.Background()
	env := testEnvelope("lobby")
	require.NoError(t, ws.Send(ctx, env, []string{"one", "two"}))
	require.NoError(t, ws.Reply(ctx, env, []string{"hi"}))
	require.NoError(t, ws.Locked(ctx, env, []string{"secret"}))

	want := []WSMessage{
		{Type: "message", Content: "one", Room: "lobby"},
		{Type: "message", Content: "two", Room: "lobby"},
		{Type: "reply", Content: "hi", Room: "lobby", UserID: "42", UserName: "dave"},
		{Type: "locked", Content: "secret", Room: "lobby", UserID: "42", UserName: "dave"},
	}
	for _, w := range want {
		var got WSMessage
		require.NoError(t, lobby.ReadJSON(&got))
		assert.Equal(t, w, got)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var stray WSMessage
	assert.Error(t, other.ReadJSON(&stray), "other room must not receive lobby frames")
}

func TestWebSocket_NoClientsIsNotAnError(t *testing.T) {
	ws := NewWebSocket(WebSocketConfig{Logger: testLogger()})
	assert.NoError(t, ws.Topic(context.Background(), testEnvelope("empty"), []string{"x"}))
}
