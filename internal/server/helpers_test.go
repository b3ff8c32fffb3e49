package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatroom/internal/chat"
	"github.com/Tyrowin/chatroom/internal/store"
)

const testOrigin = "http://localhost:8080"

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

// failingStore rejects every operation the way an unreachable database would.
type failingStore struct {
	err error
}

func (f failingStore) Append(context.Context, string, string) (chat.Message, error) {
	return chat.Message{}, f.err
}

func (f failingStore) ListAll(context.Context) ([]chat.Message, error) {
	return nil, f.err
}

func unavailableStore() failingStore {
	return failingStore{err: fmt.Errorf("%w: connection refused", chat.ErrStorageUnavailable)}
}

func newBadgerStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.OpenBadger(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// startTestServer runs a Server behind httptest. customize may adjust the
// default config before the server is built.
func startTestServer(t *testing.T, messages chat.MessageStore, customize func(cfg *Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := NewConfig()
	if customize != nil {
		customize(cfg)
	}

	s := NewServer(cfg, messages, testLogger())
	s.StartHub()
	ts := httptest.NewServer(s.SetupRoutes())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = s.Shutdown(2 * time.Second) })
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWithOrigin(ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// dial connects with the allowed test origin and consumes the welcome notice.
func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := dialWithOrigin(ts, testOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readMessage(t, conn)
	require.Equal(t, chat.SystemUsername, welcome.Username)
	require.Equal(t, "Welcome to Chat App!", welcome.Text)
	return conn
}

// join dials, binds username and waits until the binding is visible.
func join(t *testing.T, s *Server, ts *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	conn := dial(t, ts)
	send(t, conn, chat.EventJoinRoom, username)
	require.Eventually(t, func() bool {
		return len(s.Registry().BoundTo(username)) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env chat.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func readMessage(t *testing.T, conn *websocket.Conn) chat.Message {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, chat.EventMessage, env.Event)

	var msg chat.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func readUserEvent(t *testing.T, conn *websocket.Conn, event string) string {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, event, env.Event)

	var payload chat.UserPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload.Username
}

// expectNoFrame fails if anything arrives within timeout. A read timeout
// leaves the gorilla connection unusable, so call it last on a connection.
func expectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", raw)
	}

	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// expectClosed waits for the server to close the connection.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open: %v", err)
			}
			return
		}
	}
}
