package chat

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// LiveSet provides the snapshot of connections a broadcast targets.
type LiveSet interface {
	LiveConnectionIDs() []ConnID
}

// Bus fans events out to the sinks attached to live connections.
//
// Delivery is best effort: an event reaches the connections that are live at
// dispatch time and whose sink accepts the frame. Nothing is queued for
// connections that attach later, and a connection that leaves mid-broadcast
// is skipped without error.
type Bus struct {
	mu    sync.RWMutex
	sinks map[ConnID]Sink
	live  LiveSet
	log   *slog.Logger
}

// NewBus creates a bus that targets the connections reported by live.
func NewBus(log *slog.Logger, live LiveSet) *Bus {
	return &Bus{
		sinks: make(map[ConnID]Sink),
		live:  live,
		log:   log,
	}
}

// Attach binds the transport sink of a connection.
func (b *Bus) Attach(id ConnID, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sinks[id] = sink
}

// Detach removes the sink of a connection. It is a no-op for unknown ids.
func (b *Bus) Detach(id ConnID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sinks, id)
}

// SendTo delivers an event to a single connection.
func (b *Bus) SendTo(id ConnID, event string, payload any) {
	frame, ok := b.encode(event, payload)
	if !ok {
		return
	}
	b.deliver([]ConnID{id}, event, frame)
}

// BroadcastAll delivers an event to every live connection.
func (b *Bus) BroadcastAll(event string, payload any) {
	b.BroadcastExcept(event, payload)
}

// BroadcastExcept delivers an event to every live connection except the
// listed ones.
func (b *Bus) BroadcastExcept(event string, payload any, except ...ConnID) {
	frame, ok := b.encode(event, payload)
	if !ok {
		return
	}
	targets := lo.Without(b.live.LiveConnectionIDs(), except...)
	b.deliver(targets, event, frame)
}

func (b *Bus) encode(event string, payload any) ([]byte, bool) {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		b.log.Error("Dropping event that could not be encoded", "event", event, "error", err)
		return nil, false
	}
	return frame, true
}

// deliver resolves sinks under the read lock and calls them after releasing it.
func (b *Bus) deliver(targets []ConnID, event string, frame []byte) {
	if len(targets) == 0 {
		return
	}

	type target struct {
		id   ConnID
		sink Sink
	}

	b.mu.RLock()
	resolved := make([]target, 0, len(targets))
	for _, id := range targets {
		if sink, ok := b.sinks[id]; ok {
			resolved = append(resolved, target{id: id, sink: sink})
		}
	}
	b.mu.RUnlock()

	for _, t := range resolved {
		if !t.sink.Deliver(frame) {
			b.log.Debug("Frame not delivered", "conn", t.id, "event", event)
		}
	}
}
