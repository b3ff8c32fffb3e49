package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatroom/internal/chat"
)

func TestWebSocket_Welcome_On_Connect(t *testing.T) {
	_, ts := startTestServer(t, newBadgerStore(t), nil)

	// dial asserts the welcome notice is the first frame
	conn := dial(t, ts)
	expectNoFrame(t, conn, 150*time.Millisecond)
}

func TestWebSocket_Join_And_Chat(t *testing.T) {
	req := require.New(t)
	messages := newBadgerStore(t)
	s, ts := startTestServer(t, messages, nil)

	// Given alice is in the room
	alice := join(t, s, ts, "alice")

	// When bob joins
	bob := join(t, s, ts, "bob")

	// Then alice is told and bob is not
	arrival := readMessage(t, alice)
	req.Equal(chat.SystemUsername, arrival.Username)
	req.Equal("bob has joined the chat", arrival.Text)

	// When alice chats
	send(t, alice, chat.EventChatMessage, "hello bob")

	// Then both receive the persisted message, sender included
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readMessage(t, conn)
		req.Equal("alice", msg.Username)
		req.Equal("hello bob", msg.Text)
		req.WithinDuration(time.Now(), msg.Time, 5*time.Second)
	}

	history, err := messages.ListAll(context.Background())
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hello bob", history[0].Text)
}

func TestWebSocket_History_Endpoint_After_Chat(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	alice := join(t, s, ts, "alice")

	send(t, alice, chat.EventChatMessage, "first")
	readMessage(t, alice)
	send(t, alice, chat.EventChatMessage, "second")
	readMessage(t, alice)

	resp, err := http.Get(ts.URL + "/messages")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var history []map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	req.Len(history, 2)
	req.Equal("first", history[0]["text"])
	req.Equal("second", history[1]["text"])
	req.Equal("alice", history[1]["username"])
	req.NotContains(history[0], "id")
}

func TestWebSocket_Typing_Expires_For_Others(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), func(cfg *Config) {
		cfg.TypingTimeout = 100 * time.Millisecond
	})
	alice := join(t, s, ts, "alice")
	bob := join(t, s, ts, "bob")
	readMessage(t, alice) // bob's arrival

	send(t, alice, chat.EventTyping, nil)

	req.Equal("alice", readUserEvent(t, bob, chat.EventTyping))
	req.Equal("alice", readUserEvent(t, bob, chat.EventStopTyping))
	expectNoFrame(t, alice, 300*time.Millisecond)
}

func TestWebSocket_Stop_Typing_Alias(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	alice := join(t, s, ts, "alice")
	bob := join(t, s, ts, "bob")
	readMessage(t, alice)

	send(t, alice, chat.EventTyping, nil)
	req.Equal("alice", readUserEvent(t, bob, chat.EventTyping))

	send(t, alice, "stop typing", nil)
	req.Equal("alice", readUserEvent(t, bob, chat.EventStopTyping))
}

func TestWebSocket_Departure_Is_Announced(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	alice := join(t, s, ts, "alice")
	bob := join(t, s, ts, "bob")
	readMessage(t, alice)

	req.NoError(bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = bob.Close()

	departure := readMessage(t, alice)
	req.Equal(chat.SystemUsername, departure.Username)
	req.Equal("bob has left the chat", departure.Text)
	req.Eventually(func() bool { return s.Registry().Len() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_Unbound_Connection_Is_Ignored(t *testing.T) {
	req := require.New(t)
	messages := newBadgerStore(t)
	s, ts := startTestServer(t, messages, nil)
	bob := join(t, s, ts, "bob")

	// Given a connection that never joined
	lurker := dial(t, ts)

	// When it chats, types and disconnects
	send(t, lurker, chat.EventChatMessage, "hi")
	send(t, lurker, chat.EventTyping, nil)
	_ = lurker.Close()

	// Then nobody hears anything and nothing is stored
	expectNoFrame(t, bob, 300*time.Millisecond)
	history, err := messages.ListAll(context.Background())
	req.NoError(err)
	req.Empty(history)
}

func TestWebSocket_Invalid_Frames_Keep_Connection(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	alice := dial(t, ts)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"event":"joinRoom","data":42}`)))
	send(t, alice, chat.EventJoinRoom, "   ")
	send(t, alice, chat.EventJoinRoom, "alice")

	req.Eventually(func() bool {
		return len(s.Registry().BoundTo("alice")) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_Storage_Unavailable_Drops_Message(t *testing.T) {
	s, ts := startTestServer(t, unavailableStore(), nil)
	alice := join(t, s, ts, "alice")

	send(t, alice, chat.EventChatMessage, "into the void")

	expectNoFrame(t, alice, 300*time.Millisecond)
}

func TestWebSocket_Rejects_Disallowed_Origin(t *testing.T) {
	_, ts := startTestServer(t, newBadgerStore(t), nil)

	tests := []struct {
		name   string
		origin string
	}{
		{name: "foreign origin", origin: "http://evil.example.com"},
		{name: "no origin", origin: ""},
		{name: "wrong scheme", origin: "https://localhost:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dialWithOrigin(ts, tt.origin)
			if conn != nil {
				_ = conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestWebSocket_Origin_Is_Case_Insensitive(t *testing.T) {
	_, ts := startTestServer(t, newBadgerStore(t), nil)

	conn, _, err := dialWithOrigin(ts, "HTTP://LOCALHOST:8080")
	require.NoError(t, err)
	_ = conn.Close()
}

func TestWebSocket_Oversized_Frame_Closes_Connection(t *testing.T) {
	_, ts := startTestServer(t, newBadgerStore(t), func(cfg *Config) {
		cfg.MaxMessageSize = 64
	})
	conn := dial(t, ts)

	payload := `{"event":"chatMessage","data":"` + strings.Repeat("x", 200) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	expectClosed(t, conn)
}

func TestWebSocket_Rate_Limit_Drops_Excess_Frames(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{Burst: 2, RefillInterval: time.Minute}
	})

	// joinRoom spends the first token, the first chat the second
	alice := join(t, s, ts, "alice")
	send(t, alice, chat.EventChatMessage, "one")
	send(t, alice, chat.EventChatMessage, "two")
	send(t, alice, chat.EventChatMessage, "three")

	req.Equal("one", readMessage(t, alice).Text)
	expectNoFrame(t, alice, 300*time.Millisecond)
}

func TestWebSocket_Same_Username_On_Two_Connections(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	first := join(t, s, ts, "alice")
	second := join(t, s, ts, "alice")

	req.Equal("alice has joined the chat", readMessage(t, first).Text)
	req.Len(s.Registry().BoundTo("alice"), 2)

	send(t, second, chat.EventChatMessage, "it's me again")
	req.Equal("it's me again", readMessage(t, first).Text)
	req.Equal("it's me again", readMessage(t, second).Text)
}

func TestServer_Shutdown_Closes_Clients(t *testing.T) {
	req := require.New(t)
	s, ts := startTestServer(t, newBadgerStore(t), nil)
	alice := join(t, s, ts, "alice")
	bob := join(t, s, ts, "bob")

	req.NoError(s.Shutdown(2 * time.Second))

	expectClosed(t, alice)
	expectClosed(t, bob)
	req.Zero(s.Hub().ClientCount())

	// New upgrades are refused once the hub has stopped
	conn, _, err := dialWithOrigin(ts, testOrigin)
	req.NoError(err)
	expectClosed(t, conn)
}

func TestServer_Shutdown_Without_Clients(t *testing.T) {
	s, _ := startTestServer(t, newBadgerStore(t), nil)

	require.NoError(t, s.Shutdown(time.Second))
}
