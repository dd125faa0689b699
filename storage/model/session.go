package model

import (
	"time"
)

// Session is an authenticated session of a user
type Session struct {
	ID             string    `json:"id" msgpack:"id"`
	UserID         string    `json:"userId" msgpack:"user_id"`
	CreatedAt      time.Time `json:"createdAt" msgpack:"created_at"`
	LastActivityAt time.Time `json:"lastActivityAt" msgpack:"last_activity_at"`
}

// Expired reports whether the session was inactive for longer than maxInactivity at now
func (s Session) Expired(now time.Time, maxInactivity time.Duration) bool {
	return now.Sub(s.LastActivityAt) > maxInactivity
}

// SessionInfo is returned when a session is created
type SessionInfo struct {
	SessionID string              `json:"sessionId"`
	User      UserWithoutPassword `json:"user"`
}
