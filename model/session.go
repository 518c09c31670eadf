// model/session.go
package model

import "time"

// Session is an authenticated browser session, stored in Redis by the SSO
// callback handler (external to this core) and read-only here.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Temporary bool      `json:"temporary"` // email-link sessions
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
