// Package server implements the HTTP and WebSocket transport for the chat room.
//
// The implementation is organized into specialized files for configuration,
// origin checks, rate limiting, the hub that adapts sockets to chat
// connections, clients, routing, and HTTP handlers. The room's state and
// protocol live in package chat; this package only moves frames.
package server
