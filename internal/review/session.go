package review

import "mistakebook/pkg/domain"

// Session is one pass over the mistakes that were due when it started. The
// queue is a frozen snapshot: rating an entry does not shrink it, the cursor
// simply wraps, and newly-due or no-longer-due items are picked up by the
// next session. That keeps the queue stable under the user's feet instead of
// reshuffling after every rating.
type Session struct {
	queue  []domain.Mistake
	cursor int
}

// NewSession freezes the given due list into a session queue.
func NewSession(due []domain.Mistake) *Session {
	queue := make([]domain.Mistake, len(due))
	copy(queue, due)
	return &Session{queue: queue}
}

// Current returns the entry at the cursor, or false when the queue is empty.
func (s *Session) Current() (domain.Mistake, bool) {
	if len(s.queue) == 0 {
		return domain.Mistake{}, false
	}
	return s.queue[s.cursor], true
}

// Advance moves the cursor forward by one, wrapping to zero at the end of
// the queue.
func (s *Session) Advance() {
	if len(s.queue) == 0 {
		return
	}
	s.cursor = (s.cursor + 1) % len(s.queue)
}

// SetCurrent replaces the entry at the cursor, so a freshly rated mistake is
// shown with its updated schedule if the cursor wraps back to it.
func (s *Session) SetCurrent(m domain.Mistake) {
	if len(s.queue) == 0 {
		return
	}
	s.queue[s.cursor] = m
}

// Position returns the zero-based cursor position.
func (s *Session) Position() int {
	return s.cursor
}

// Len returns the queue length.
func (s *Session) Len() int {
	return len(s.queue)
}
