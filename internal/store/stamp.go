package store

import (
	"time"
)

// stamper hands out non-decreasing timestamps. When the wall clock has not
// advanced (or stepped backwards) since the last stamp, the previous value is
// reused; ordering ties are broken by the store's sequence id.
// Callers hold the store's append lock.
type stamper struct {
	now  func() time.Time
	last time.Time
}

func newStamper() *stamper {
	return &stamper{now: time.Now}
}

func (s *stamper) next() time.Time {
	t := s.now().UTC().Round(0)
	if t.Before(s.last) {
		return s.last
	}
	s.last = t
	return t
}

// seed makes sure stamps continue after the newest persisted message.
func (s *stamper) seed(t time.Time) {
	if t.After(s.last) {
		s.last = t.UTC()
	}
}
