// Package server implements the HTTP and WebSocket surface of the chat service.
package server

import (
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/chatroom/internal/chat"
)

// Server bundles the chat engine with its transport: the hub that adapts
// WebSocket clients to connection ids, the origin policy and the upgrader.
type Server struct {
	config   Config
	log      *slog.Logger
	store    chat.MessageStore
	registry *chat.Registry
	router   *chat.Router
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// NewServer builds the chat engine on top of store and prepares the hub.
// Call StartHub before serving requests.
func NewServer(cfg *Config, store chat.MessageStore, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	registry := chat.NewRegistry()
	bus := chat.NewBus(log, registry)
	router := chat.NewRouter(log, registry, store, bus, sanitized.TypingTimeout)

	s := &Server{
		config:   sanitized,
		log:      log,
		store:    store,
		registry: registry,
		router:   router,
		hub:      NewHub(router, log),
		origins:  newOriginPolicy(sanitized.AllowedOrigins, log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.config
}

// Hub returns the hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router returns the chat router.
func (s *Server) Router() *chat.Router {
	return s.router
}

// Registry returns the live connection registry.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}
