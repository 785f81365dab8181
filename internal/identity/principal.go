// Package identity adapts the external identity provider to the two capabilities the
// session core needs: who is signed in, and a bearer credential fetched on demand.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoSession = errors.New("no active session")

// Principal is the signed-in user as seen by the session core.
// Identity returns "" when nobody is signed in.
type Principal interface {
	Identity() string
	Credential(ctx context.Context) (string, error)
}

// BearerSession holds the latest token presented by one identity. The HTTP middleware
// refreshes it on every request; the session manager reads it before every remote call.
type BearerSession struct {
	mu        sync.RWMutex
	identity  string
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewBearerSession(identity string) *BearerSession {
	return &BearerSession{identity: identity, now: time.Now}
}

// Refresh replaces the token. A zero expiresAt means the token carries no expiry.
func (s *BearerSession) Refresh(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
}

// SignOut clears identity and token.
func (s *BearerSession) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = ""
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *BearerSession) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *BearerSession) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == "" || s.token == "" {
		return "", ErrNoSession
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", ErrNoSession
	}
	return s.token, nil
}

// Static is a fixed principal, mostly for tests.
type Static struct {
	ID    string
	Token string
	Err   error
}

func (s Static) Identity() string { return s.ID }

func (s Static) Credential(ctx context.Context) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.ID == "" || s.Token == "" {
		return "", ErrNoSession
	}
	return s.Token, nil
}
