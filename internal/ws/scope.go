package ws

import "sync"

// Subscriber is anything events can be subscribed on.
type Subscriber interface {
	On(event string, fn Handler) func()
}

var (
	_ Subscriber = (*Hub)(nil)
	_ Subscriber = (*Conn)(nil)
)

// Scope ties a group of subscriptions to one owner. Close releases all of them.
type Scope struct {
	src     Subscriber
	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// NewScope creates a scope over src.
func NewScope(src Subscriber) *Scope {
	return &Scope{src: src}
}

// On subscribes fn for the lifetime of the scope. It is a no-op once closed.
func (s *Scope) On(event string, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancels = append(s.cancels, s.src.On(event, fn))
}

// Close unsubscribes everything registered through the scope.
func (s *Scope) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.closed = true
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
