// Package chat implements the real-time engine behind the single shared room.
//
// The engine is split into small components that each guard their own state:
// the Registry tracks live connections and their bound usernames, the
// MessageStore persists chat history, the TypingTracker keeps short-lived
// typing indicators, and the Bus fans events out to attached sinks. The Router
// ties them together as a per-connection protocol state machine.
//
// Nothing in this package knows about sockets. The transport layer attaches a
// Sink per connection and forwards decoded Inbound events to the Router.
package chat
