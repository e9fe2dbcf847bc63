package model

import "time"

type SessionStatus string

const (
	// SessionStatusPending: session created, no sender has joined yet.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusAwaitingCredentials: a sender joined but has not
	// delivered credentials yet.
	SessionStatusAwaitingCredentials SessionStatus = "awaiting_credentials"
	// SessionStatusCompleted: credentials are stored. Terminal.
	SessionStatusCompleted SessionStatus = "completed"
)

// Credentials is the payload handed from the phone to the TV.
type Credentials struct {
	Host        string `json:"host"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	PlaylistURL string `json:"playlistUrl"`
}

// PairingSession is the unit of rendezvous between a TV and a phone.
// The store owns the canonical copy; expiry is derived from CreatedAt
// and the configured TTL, never stored as a status value.
type PairingSession struct {
	Code        string        `json:"code"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	Credentials *Credentials  `json:"credentials,omitempty"`
}

// Clone returns a deep copy so callers outside the store cannot mutate
// the stored session without going through an atomic update.
func (s *PairingSession) Clone() *PairingSession {
	if s == nil {
		return nil
	}
	dup := *s
	if s.Credentials != nil {
		creds := *s.Credentials
		dup.Credentials = &creds
	}
	return &dup
}
