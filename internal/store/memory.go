package store

import (
	"sync"
	"time"

	"github.com/lumacast/pairing-server-go/internal/model"
)

// MemoryStore keeps sessions in a mutex-guarded map. Sessions never
// outlive the process; durable storage is deliberately out of scope.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.PairingSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.PairingSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) live(sess *model.PairingSession) bool {
	return s.now().Sub(sess.CreatedAt) <= s.ttl
}

// Create stores a new session under code. A live session already
// occupying the slot is a collision; an expired or completed one is
// overwritten (codes are recycled once their session is dead or done).
func (s *MemoryStore) Create(code string, session *model.PairingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[code]; ok {
		if s.live(existing) && existing.Status != model.SessionStatusCompleted {
			return ErrCodeCollision
		}
	}

	s.sessions[code] = session.Clone()
	return nil
}

func (s *MemoryStore) Get(code string) (*model.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok || !s.live(sess) {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Update applies fn to the stored session while holding the store lock.
// fn receives a copy; the copy replaces the stored session only when fn
// returns nil, so a failed guard leaves the session untouched.
func (s *MemoryStore) Update(code string, fn func(*model.PairingSession) error) (*model.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok || !s.live(sess) {
		return nil, ErrNotFound
	}

	next := sess.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	s.sessions[code] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// IsAvailable reports whether Create would succeed for code right now.
// The generator uses this as a cheap pre-check; the authoritative
// answer is still Create returning ErrCodeCollision.
func (s *MemoryStore) IsAvailable(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[code]
	if !ok {
		return true
	}
	return !s.live(existing) || existing.Status == model.SessionStatusCompleted
}

// DeleteExpired removes all sessions past the TTL and returns how many
// were removed. Expiry is silent; callers only observe it as NotFound.
func (s *MemoryStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, sess := range s.sessions {
		if !s.live(sess) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
