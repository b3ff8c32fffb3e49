package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Router is the per-connection protocol state machine.
//
// A connection starts Unbound after Connect, becomes Bound after a successful
// join, and is Closed after Disconnect. The state is derived from the Registry:
// chat and typing events are ignored until a username is bound, and every event
// is ignored once the connection has been unregistered.
type Router struct {
	log      *slog.Logger
	registry *Registry
	store    MessageStore
	bus      *Bus
	typing   *TypingTracker
	now      func() time.Time
}

// NewRouter wires the router to its collaborators. typingWindow configures the
// typing inactivity window; a non-positive value uses DefaultTypingWindow.
func NewRouter(log *slog.Logger, registry *Registry, store MessageStore, bus *Bus, typingWindow time.Duration) *Router {
	r := &Router{
		log:      log,
		registry: registry,
		store:    store,
		bus:      bus,
		now:      time.Now,
	}
	r.typing = NewTypingTracker(typingWindow, r.typingExpired)
	return r
}

// Typing exposes the tracker, mainly for inspection.
func (r *Router) Typing() *TypingTracker {
	return r.typing
}

// Connect registers a new connection, attaches its sink and greets it. The
// welcome notice goes to the new connection only.
func (r *Router) Connect(sink Sink) ConnID {
	id := r.registry.Register()
	r.bus.Attach(id, sink)
	r.bus.SendTo(id, EventMessage, welcomeMessage(r.now()))
	return id
}

// Handle dispatches a decoded client event.
func (r *Router) Handle(ctx context.Context, id ConnID, in Inbound) {
	switch in.Event {
	case EventJoinRoom:
		r.Join(id, in.Arg)
	case EventChatMessage:
		r.Chat(ctx, id, in.Arg)
	case EventTyping:
		r.StartTyping(id)
	case EventStopTyping:
		r.StopTyping(id)
	default:
		r.log.Debug("Ignoring unknown event", "conn", id, "event", in.Event)
	}
}

// Join binds username to the connection and announces the arrival to everyone
// else. Invalid or repeated joins are ignored.
func (r *Router) Join(id ConnID, username string) {
	bound, err := r.registry.Bind(id, username)
	if err != nil {
		r.log.Debug("Join ignored", "conn", id, "error", err)
		return
	}

	r.log.Info("User joined", "conn", id, "username", bound)
	r.bus.BroadcastExcept(EventMessage, arrivalMessage(bound, r.now()), id)
}

// Chat persists a message from a bound connection and broadcasts it to every
// connection, the sender included. A message that cannot be stored is dropped.
func (r *Router) Chat(ctx context.Context, id ConnID, text string) {
	username, ok := r.registry.UsernameOf(id)
	if !ok {
		r.log.Debug("Chat from unbound connection ignored", "conn", id)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	saved, err := r.store.Append(ctx, username, text)
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			r.log.Warn("Message dropped, storage unavailable", "conn", id, "username", username, "error", err)
		} else {
			r.log.Error("Message dropped", "conn", id, "username", username, "error", err)
		}
		return
	}

	r.bus.BroadcastAll(EventMessage, saved)
}

// StartTyping marks the user as typing and tells everyone else.
func (r *Router) StartTyping(id ConnID) {
	username, ok := r.registry.UsernameOf(id)
	if !ok {
		return
	}

	r.typing.MarkTyping(username)
	r.bus.BroadcastExcept(EventTyping, UserPayload{Username: username}, id)
}

// StopTyping clears the typing state and tells everyone else.
func (r *Router) StopTyping(id ConnID) {
	username, ok := r.registry.UsernameOf(id)
	if !ok {
		return
	}

	r.typing.MarkStopped(username)
	r.bus.BroadcastExcept(EventStopTyping, UserPayload{Username: username}, id)
}

// Disconnect releases the connection. If it was bound, its typing state is
// cancelled and the departure is announced to the remaining connections.
// stopTyping skips other connections of the same user, matching expiry.
func (r *Router) Disconnect(id ConnID) {
	username, bound := r.registry.Unregister(id)
	r.bus.Detach(id)
	if !bound {
		return
	}

	if r.typing.MarkStopped(username) {
		r.bus.BroadcastExcept(EventStopTyping, UserPayload{Username: username}, r.registry.BoundTo(username)...)
	}
	r.log.Info("User left", "conn", id, "username", username)
	r.bus.BroadcastAll(EventMessage, departureMessage(username, r.now()))
}

// Close stops pending typing expiries.
func (r *Router) Close() {
	r.typing.Close()
}

func (r *Router) typingExpired(username string) {
	r.log.Debug("Typing expired", "username", username)
	r.bus.BroadcastExcept(EventStopTyping, UserPayload{Username: username}, r.registry.BoundTo(username)...)
}
