package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer is a minimal realtime endpoint. Frames the client sends land on
// received; anything written to push goes out to the client.
type wsServer struct {
	srv      *httptest.Server
	received chan forum.Envelope
	push     chan interface{}
	kill     chan struct{}
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{
		received: make(chan forum.Envelope, 10),
		push:     make(chan interface{}, 10),
		kill:     make(chan struct{}),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/chat" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				var env forum.Envelope
				if err := conn.ReadJSON(&env); err != nil {
					return
				}
				s.received <- env
			}
		}()

		for {
			select {
			case v := <-s.push:
				if err := conn.WriteJSON(v); err != nil {
					return
				}
			case <-s.kill:
				return
			case <-r.Context().Done():
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url(t *testing.T) string {
	addr, err := RealtimeURL(s.srv.URL, "/chat")
	require.NoError(t, err)
	return addr
}

func connectChannel(t *testing.T, s *wsServer) *Channel {
	t.Helper()
	ch := NewChannel(s.url(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.Connect(ctx))
	t.Cleanup(ch.Close)
	return ch
}

func expectFrame(t *testing.T, s *wsServer) forum.Envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
		return forum.Envelope{}
	}
}

func expectEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestRealtimeURL(t *testing.T) {
	tests := []struct {
		base      string
		namespace string
		want      string
		wantErr   bool
	}{
		{base: "http://localhost:5000", namespace: "/chat", want: "ws://localhost:5000/ws/chat"},
		{base: "https://forum.example.com/", namespace: "chat", want: "wss://forum.example.com/ws/chat"},
		{base: "http://host/prefix/", namespace: "/chat/", want: "ws://host/prefix/ws/chat"},
		{base: "ws://host:1", namespace: "/chat", want: "ws://host:1/ws/chat"},
		{base: "ftp://host", namespace: "/chat", wantErr: true},
		{base: "localhost:5000", namespace: "/chat", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := RealtimeURL(tt.base, tt.namespace)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelJoinLeave(t *testing.T) {
	s := newWSServer(t)
	ch := connectChannel(t, s)
	assert.True(t, ch.IsConnected())

	require.NoError(t, ch.Join(7, "alice"))
	env := expectFrame(t, s)
	assert.Equal(t, forum.EventJoin, env.Event)
	assert.JSONEq(t, `{"thread_id": 7, "username": "alice"}`, string(env.Data))

	require.NoError(t, ch.Leave(7, "alice"))
	env = expectFrame(t, s)
	assert.Equal(t, forum.EventLeave, env.Event)
	assert.JSONEq(t, `{"thread_id": 7, "username": "alice"}`, string(env.Data))
}

func TestChannelJoinQueuedBeforeConnect(t *testing.T) {
	s := newWSServer(t)
	ch := NewChannel(s.url(t))
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Join(3, "bob"))
	require.NoError(t, ch.Connect(context.Background()))

	env := expectFrame(t, s)
	assert.Equal(t, forum.EventJoin, env.Event)
}

func TestChannelDeliversEvents(t *testing.T) {
	s := newWSServer(t)
	ch := connectChannel(t, s)

	s.push <- map[string]interface{}{
		"event": "new_post",
		"data": map[string]interface{}{
			"id": 11, "thread_id": 2, "username": "carol", "content": "hey",
			"created_at": "2024-05-01T10:00:00",
		},
	}
	ev := expectEvent(t, ch)
	assert.Equal(t, EventPost, ev.Kind)
	assert.Equal(t, int64(2), ev.Post.ThreadID)
	assert.Equal(t, "hey", ev.Post.Content)

	// Unknown events are dropped, the next known one still arrives
	s.push <- map[string]interface{}{"event": "typing", "data": map[string]interface{}{}}
	s.push <- map[string]interface{}{"event": "status", "data": map[string]interface{}{"msg": "carol has joined the thread."}}

	ev = expectEvent(t, ch)
	assert.Equal(t, EventStatus, ev.Kind)
	assert.Equal(t, "carol has joined the thread.", ev.Notice.Msg)
}

func TestChannelServerDisconnect(t *testing.T) {
	s := newWSServer(t)
	ch := connectChannel(t, s)

	close(s.kill)

	select {
	case err := <-ch.Errors():
		assert.Contains(t, err.Error(), "realtime channel lost")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error after server disconnect")
	}
	assert.False(t, ch.IsConnected())
}

func TestChannelCloseClosesEvents(t *testing.T) {
	s := newWSServer(t)
	ch := NewChannel(s.url(t))
	require.NoError(t, ch.Connect(context.Background()))

	ch.Close()
	ch.Close()

	_, ok := <-ch.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, ch.Join(1, "x"), ErrChannelClosed)
	assert.ErrorIs(t, ch.Connect(context.Background()), ErrChannelClosed)

	select {
	case err := <-ch.Errors():
		t.Fatalf("close should not report an error, got %v", err)
	default:
	}
}

func TestChannelConnectFailure(t *testing.T) {
	s := newWSServer(t)
	addr := strings.Replace(s.url(t), "/ws/chat", "/ws/other", 1)

	ch := NewChannel(addr)
	defer ch.Close()

	err := ch.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, ch.IsConnected())
}

func TestDecodeEvent(t *testing.T) {
	_, err := decodeEvent(forum.Envelope{Event: "new_post", Data: []byte(`"not an object"`)})
	assert.Error(t, err)

	_, err = decodeEvent(forum.Envelope{Event: "whatever", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, errUnknownEvent)
}
