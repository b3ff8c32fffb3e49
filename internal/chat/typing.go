package chat

import (
	"sync"
	"time"
)

// DefaultTypingWindow is how long a typing indicator stays up without a refresh.
const DefaultTypingWindow = 2 * time.Second

type typingEntry struct {
	deadline time.Time
	timer    *time.Timer
	gen      uint64
}

// TypingTracker keeps ephemeral per-username typing state. Every entry expires
// after a window of silence unless it is refreshed or stopped first; on expiry
// the tracker calls its expiry handler exactly once for that entry.
type TypingTracker struct {
	mu       sync.Mutex
	window   time.Duration
	entries  map[string]*typingEntry
	onExpire func(username string)
	gen      uint64
	closed   bool
}

// NewTypingTracker creates a tracker with the given inactivity window. A
// non-positive window falls back to DefaultTypingWindow. onExpire may be nil.
func NewTypingTracker(window time.Duration, onExpire func(username string)) *TypingTracker {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	if onExpire == nil {
		onExpire = func(string) {}
	}
	return &TypingTracker{
		window:   window,
		entries:  make(map[string]*typingEntry),
		onExpire: onExpire,
	}
}

// Window returns the inactivity window.
func (t *TypingTracker) Window() time.Duration {
	return t.window
}

// MarkTyping starts the typing window for username, or restarts it if the
// user is already typing.
func (t *TypingTracker) MarkTyping(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	entry, ok := t.entries[username]
	if !ok {
		entry = &typingEntry{}
		t.entries[username] = entry
	} else {
		entry.timer.Stop()
	}

	t.gen++
	gen := t.gen
	entry.gen = gen
	entry.deadline = time.Now().Add(t.window)
	entry.timer = time.AfterFunc(t.window, func() { t.expire(username, gen) })
}

// MarkStopped cancels any pending expiry and removes the entry. It reports
// whether an entry was live.
func (t *TypingTracker) MarkStopped(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[username]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.entries, username)
	return true
}

// IsTyping reports whether username has a live entry.
func (t *TypingTracker) IsTyping(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[username]
	return ok
}

// Deadline returns when the entry for username will expire.
func (t *TypingTracker) Deadline(username string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[username]
	if !ok {
		return time.Time{}, false
	}
	return entry.deadline, true
}

// Close cancels every pending expiry. Later MarkTyping calls are ignored.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for username, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, username)
	}
	t.closed = true
}

// expire runs on the timer goroutine. A timer that was superseded by a reset
// or a stop finds a different generation (or no entry) and does nothing.
func (t *TypingTracker) expire(username string, gen uint64) {
	t.mu.Lock()
	entry, ok := t.entries[username]
	if !ok || entry.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.entries, username)
	t.mu.Unlock()

	t.onExpire(username)
}
