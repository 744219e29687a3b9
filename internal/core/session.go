package core

import "time"

const (
	InitialSession SessionEventKind = "INITIAL_SESSION"
	SignedIn       SessionEventKind = "SIGNED_IN"
	SignedOut      SessionEventKind = "SIGNED_OUT"
)

type (
	SessionEventKind string

	// Session is the authenticated identity a ledger is scoped to.
	Session struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Email     string    `json:"email"`
		Token     string    `json:"-"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	// SessionEvent is published by a session provider on every lifecycle
	// change. Session is nil when nobody is signed in.
	SessionEvent struct {
		Kind    SessionEventKind
		Session *Session
	}
)

// SameIdentity reports whether two sessions belong to the same sign-in.
func (s *Session) SameIdentity(o *Session) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return s.ID == o.ID && s.UserID == o.UserID
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
