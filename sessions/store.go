// Package sessions tracks the single live refresh token per identity. A
// refresh token is only honored while it is textually equal to the stored
// value, which is what makes rotation effective: once a new token is
// recorded, the superseded one fails even though its signature is still good.
package sessions

import "sync"

// Store is the authoritative refresh-token slot per identity. Not a set or
// history: recording a token overwrites whatever was there.
type Store interface {
	Record(email, refreshToken string)
	IsCurrent(email, refreshToken string) bool
	Clear(email string)
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps refresh-token slots in a mutex-guarded map. It lives
// only for the lifetime of the process.
type InMemoryStore struct {
	tokens map[string]string
	lock   sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]string),
	}
}

func (s *InMemoryStore) Record(email, refreshToken string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tokens[email] = refreshToken
}

// IsCurrent reports whether the given token is the identity's live refresh
// token. Tokens that are cryptographically valid but superseded by rotation
// are rejected here. An empty stored slot matches nothing.
func (s *InMemoryStore) IsCurrent(email, refreshToken string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	current, ok := s.tokens[email]
	return ok && current != "" && current == refreshToken
}

func (s *InMemoryStore) Clear(email string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.tokens, email)
}
