package identity

import (
	"context"
	"sync"
)

// Session holds a process-wide signed-in identity and notifies subscribers
// whenever it changes.
type Session struct {
	mu          sync.RWMutex
	current     *Identity
	subscribers map[int]func(*Identity)
	nextID      int
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{subscribers: make(map[int]func(*Identity))}
}

// Current prefers an identity attached to ctx and falls back to the session.
func (s *Session) Current(ctx context.Context) (*Identity, bool) {
	if id, ok := FromContext(ctx); ok {
		return id, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	id := *s.current
	return &id, true
}

// SignIn replaces the session identity.
func (s *Session) SignIn(id Identity) {
	s.set(&id)
}

// SignOut clears the session identity.
func (s *Session) SignOut() {
	s.set(nil)
}

// Subscribe registers fn for identity changes. fn is called immediately with
// the current identity. The returned function removes the subscription.
func (s *Session) Subscribe(fn func(*Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	current := copyIdentity(s.current)
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	s.current = copyIdentity(id)
	subs := make([]func(*Identity), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the session.
	for _, fn := range subs {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
