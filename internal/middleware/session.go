package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookie carries the token issued at login.
const SessionCookie = "session"

// Sessions keeps the tokens issued to logged-in browsers. Tokens live only in
// memory, so a restart logs everyone out.
type Sessions struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]time.Time
}

// NewSessions creates an empty store whose tokens expire after ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, tokens: make(map[string]time.Time)}
}

// TTL returns the lifetime of a new token.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Create issues a new random token.
func (s *Sessions) Create() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return token
}

// Valid reports whether token was issued and has not expired or been revoked.
func (s *Sessions) Valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expires) {
		delete(s.tokens, token)
		return false
	}
	return true
}

// Revoke forgets token.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// FromRequest returns the session token sent with r, if any.
func FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
