package models

import (
	"time"
)

// SessionVersion is the schema version written into every stored session.
const SessionVersion = 1

// Session is the portal's typed identity record for a signed-in user
type Session struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
