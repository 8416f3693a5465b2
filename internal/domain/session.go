package domain

import (
	"time"
)

// Session is the server-side record behind a signed session cookie.
// Deleting it revokes the cookie before its expiry.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL returns the time until the session expires.
// Returns 0 if the session has already expired.
func (s *Session) TTL(now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
