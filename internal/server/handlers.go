// Package server exposes HTTP handlers, including WebSocket upgrades, the
// message history, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Tyrowin/chatroom/internal/chat"
)

// WebSocketHandler upgrades GET requests to WebSocket and registers a client
// with the hub, which assigns the connection id and starts the pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.config)
	if !s.hub.Register(client) {
		s.log.Info("Rejecting connection during shutdown", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// MessagesHandler returns the full ordered message history as a JSON array
// of {username, text, time}.
func (s *Server) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && s.origins.allows(r) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Messages endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	messages, err := s.store.ListAll(r.Context())
	if err != nil {
		s.log.Error("Listing messages failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrStorageUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "Message history unavailable", status)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		s.log.Warn("Error writing messages response", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is running!")
}

// TestPageHandler serves a small HTML client for trying the chat protocol
// from a browser: join with a username, send messages, and watch typing
// indicators from other tabs.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Room Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        #typing { color: #888; font-style: italic; min-height: 1.2em; }
        .admin { color: gray; font-style: italic; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:disabled { background-color: #9bbfd3; }
    </style>
</head>
<body>
    <h1>Chat Room</h1>

    <div id="login">
        <input type="text" id="username" placeholder="Pick a username...">
        <button onclick="join()">Join</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <div>
        <input type="text" id="text" placeholder="Type a message..." disabled>
        <button id="send" onclick="sendChat()" disabled>Send</button>
    </div>

    <script>
        const messages = document.getElementById('messages');
        const typingDiv = document.getElementById('typing');
        const textInput = document.getElementById('text');
        const sendButton = document.getElementById('send');
        const typers = new Set();
        let ws = null;
        let stopTimer = null;

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(data === undefined ? {event} : {event, data}));
            }
        }

        function show(msg) {
            const el = document.createElement('div');
            if (msg.username === 'Admin') { el.className = 'admin'; }
            const at = new Date(msg.time).toLocaleTimeString();
            el.textContent = '[' + at + '] ' + msg.username + ': ' + msg.text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function renderTyping() {
            typingDiv.textContent = typers.size ? Array.from(typers).join(', ') + ' typing...' : '';
        }

        async function join() {
            const username = document.getElementById('username').value.trim();
            if (!username) { return; }

            const history = await fetch('/messages').then(r => r.json()).catch(() => []);
            history.forEach(show);

            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onopen = () => {
                emit('joinRoom', username);
                document.getElementById('login').style.display = 'none';
                textInput.disabled = false;
                sendButton.disabled = false;
            };
            ws.onmessage = (e) => {
                const frame = JSON.parse(e.data);
                if (frame.event === 'message') { show(frame.data); }
                if (frame.event === 'typing') { typers.add(frame.data.username); renderTyping(); }
                if (frame.event === 'stopTyping') { typers.delete(frame.data.username); renderTyping(); }
            };
            ws.onclose = () => {
                textInput.disabled = true;
                sendButton.disabled = true;
                show({username: 'Admin', text: 'Connection closed', time: new Date()});
            };
        }

        function sendChat() {
            const text = textInput.value.trim();
            if (!text) { return; }
            emit('chatMessage', text);
            emit('stopTyping');
            textInput.value = '';
        }

        textInput.addEventListener('input', () => {
            emit('typing');
            clearTimeout(stopTimer);
            stopTimer = setTimeout(() => emit('stopTyping'), 1000);
        });
        textInput.addEventListener('keypress', (e) => {
            if (e.key === 'Enter') { sendChat(); }
        });
    </script>
</body>
</html>`
