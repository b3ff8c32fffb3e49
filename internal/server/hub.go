// Package server coordinates client registration, pump lifecycles and
// connection cleanup for the chat WebSocket system via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatroom/internal/chat"
)

// Hub maps WebSocket clients to chat connections. Registration and
// unregistration are serialized on the Run loop, which hands each new client
// to the router and starts its pumps; fan-out itself goes through the chat
// bus that the router owns.
type Hub struct {
	router     *chat.Router
	log        *slog.Logger
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that routes client events through router.
func NewHub(router *chat.Router, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		router:     router,
		log:        log,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a client to the Run loop. It returns false when the hub is
// shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister asks the Run loop to release a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

// Run starts the hub's main event loop. It must run in its own goroutine and
// returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	client.setID(h.router.Connect(client))

	h.mutex.Lock()
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered", "conn", client.id, "addr", client.addr, "count", clientCount)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.router.Disconnect(client.id)
	client.closeSend()
	h.log.Info("Client unregistered", "conn", client.id, "addr", client.addr, "count", clientCount)
}

// shutdownClients closes every active client connection and send buffer so
// both pumps return.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("Error closing client connection", "addr", client.addr, "error", err)
			}
		}
		client.closeSend()
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to finish, or
// until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	deadline := time.After(timeout)

	// done stays open when Run was never started.
	select {
	case <-h.done:
	case <-deadline:
		h.log.Warn("Hub loop did not stop before the shutdown timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-deadline:
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
