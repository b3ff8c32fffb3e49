package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Registry owns every live Connection and its username binding.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]*Connection
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ConnID]*Connection),
		now:   time.Now,
	}
}

// Register creates an unbound connection and adds it to the live set.
func (r *Registry) Register() ConnID {
	id := NewConnID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[id] = &Connection{ID: id, ConnectedAt: r.now()}
	return id
}

// Bind associates a username with the connection. A connection can be bound
// only once; the stored username is trimmed of surrounding whitespace.
func (r *Registry) Bind(id ConnID, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return "", ErrConnectionClosed
	}
	if conn.Bound() {
		return "", ErrAlreadyBound
	}

	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return "", ErrInvalidUsername
	}

	conn.Username = trimmed
	return trimmed, nil
}

// UsernameOf returns the username bound to id, if any.
func (r *Registry) UsernameOf(id ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok || !conn.Bound() {
		return "", false
	}
	return conn.Username, true
}

// Lookup returns a copy of the connection record.
func (r *Registry) Lookup(id ConnID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Unregister removes the connection and returns the username it held. The
// username is reported only by the call that actually removed the connection,
// so a departure notice is emitted at most once.
func (r *Registry) Unregister(id ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)
	return conn.Username, conn.Bound()
}

// LiveConnectionIDs returns a snapshot of every live connection id.
func (r *Registry) LiveConnectionIDs() []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.conns)
}

// BoundTo returns the live connections currently bound to username.
func (r *Registry) BoundTo(username string) []ConnID {
	if username == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []ConnID
	for id, conn := range r.conns {
		if conn.Username == username {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
