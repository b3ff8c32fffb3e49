// Package server constructs and starts the chat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub starts the hub loop in a separate goroutine.
// This should be called before starting the HTTP server.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// Shutdown stops the hub, closing every client, and cancels pending typing
// expiries. The message store is owned by the caller and left open.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.hub.Shutdown(timeout)
	s.router.Close()
	return err
}

// StartServer starts the HTTP server and blocks until it stops. A server
// closed by ShutdownServer is not reported as an error.
func StartServer(log *slog.Logger, server *http.Server) error {
	log.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(log *slog.Logger, server *http.Server, timeout time.Duration) error {
	log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
