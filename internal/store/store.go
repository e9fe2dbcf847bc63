package store

import (
	"errors"

	"github.com/lumacast/pairing-server-go/internal/model"
)

var (
	// ErrNotFound: the code is unknown or its session is past the TTL.
	ErrNotFound = errors.New("pairing session not found")
	// ErrCodeCollision: a live session already occupies the code.
	ErrCodeCollision = errors.New("pairing code already in use")
)

// SessionStore is the table of active pairing sessions keyed by code.
// All mutations to a session go through Update so that the status check
// and the mutation are a single indivisible step per code. A session
// past the TTL is treated as not found on every read even if the reaper
// has not swept it yet.
type SessionStore interface {
	Create(code string, session *model.PairingSession) error
	Get(code string) (*model.PairingSession, error)
	Update(code string, fn func(*model.PairingSession) error) (*model.PairingSession, error)
	Delete(code string)
	IsAvailable(code string) bool
	DeleteExpired() int
	Len() int
}
