package domain

import "time"

// SessionState tracks one login attempt through the second factor gate.
type SessionState string

const (
	SessionNotStarted          SessionState = "not_started"
	SessionPendingSecondFactor SessionState = "pending_second_factor"
	SessionSetupSecondFactor   SessionState = "setup_second_factor"
	SessionVerified            SessionState = "verified"
)

// Session is the server side half of a login. The browser only holds a
// signed token naming it.
type Session struct {
	ID             string // fingerprint of the opaque session id
	UserID         string // bound once the session is verified
	TempUserID     string // user being authenticated before verification
	State          SessionState
	FailedAttempts int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

func (s Session) Verified() bool {
	return s.State == SessionVerified && s.UserID != ""
}

// PendingUserID returns whichever user the session is about, verified or not.
func (s Session) PendingUserID() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.TempUserID
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
