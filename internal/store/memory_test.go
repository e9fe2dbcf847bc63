package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacast/pairing-server-go/internal/model"
)

func newSession(code string, createdAt time.Time) *model.PairingSession {
	return &model.PairingSession{
		Code:      code,
		Status:    model.SessionStatusPending,
		CreatedAt: createdAt,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore(10 * time.Minute)

	t.Run("create then get returns the session", func(t *testing.T) {
		require.NoError(t, s.Create("AB12CD", newSession("AB12CD", time.Now())))

		sess, err := s.Get("AB12CD")
		require.NoError(t, err)
		assert.Equal(t, "AB12CD", sess.Code)
		assert.Equal(t, model.SessionStatusPending, sess.Status)
	})

	t.Run("get unknown code returns not found", func(t *testing.T) {
		_, err := s.Get("ZZZZZZ")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create over a live pending session collides", func(t *testing.T) {
		err := s.Create("AB12CD", newSession("AB12CD", time.Now()))
		assert.ErrorIs(t, err, ErrCodeCollision)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		sess, err := s.Get("AB12CD")
		require.NoError(t, err)
		sess.Status = model.SessionStatusCompleted

		again, err := s.Get("AB12CD")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusPending, again.Status)
	})
}

func TestMemoryStore_Expiry(t *testing.T) {
	ttl := 10 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := NewMemoryStore(ttl)
	now := base
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Create("483", newSession("483", base)))

	t.Run("live just inside the ttl", func(t *testing.T) {
		now = base.Add(ttl)
		_, err := s.Get("483")
		assert.NoError(t, err)
	})

	t.Run("not found just past the ttl, before any sweep", func(t *testing.T) {
		now = base.Add(ttl + time.Second)
		_, err := s.Get("483")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Update("483", func(sess *model.PairingSession) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired slot is available and can be recreated", func(t *testing.T) {
		assert.True(t, s.IsAvailable("483"))
		assert.NoError(t, s.Create("483", newSession("483", now)))
	})
}

func TestMemoryStore_Update(t *testing.T) {
	s := NewMemoryStore(10 * time.Minute)
	require.NoError(t, s.Create("QX7P2N", newSession("QX7P2N", time.Now())))

	t.Run("applies the mutation atomically", func(t *testing.T) {
		updated, err := s.Update("QX7P2N", func(sess *model.PairingSession) error {
			sess.Status = model.SessionStatusAwaitingCredentials
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusAwaitingCredentials, updated.Status)

		sess, err := s.Get("QX7P2N")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusAwaitingCredentials, sess.Status)
	})

	t.Run("aborted mutation leaves the session untouched", func(t *testing.T) {
		abort := assert.AnError
		_, err := s.Update("QX7P2N", func(sess *model.PairingSession) error {
			sess.Status = model.SessionStatusCompleted
			return abort
		})
		assert.ErrorIs(t, err, abort)

		sess, err := s.Get("QX7P2N")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusAwaitingCredentials, sess.Status)
	})

	t.Run("unknown code returns not found", func(t *testing.T) {
		_, err := s.Update("NOPE42", func(sess *model.PairingSession) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore_CompletedSlotReuse(t *testing.T) {
	s := NewMemoryStore(10 * time.Minute)
	require.NoError(t, s.Create("REUSE1", newSession("REUSE1", time.Now())))

	_, err := s.Update("REUSE1", func(sess *model.PairingSession) error {
		sess.Status = model.SessionStatusCompleted
		sess.Credentials = &model.Credentials{Host: "srv", Username: "u", Password: "p"}
		return nil
	})
	require.NoError(t, err)

	t.Run("completed session still readable until ttl", func(t *testing.T) {
		sess, err := s.Get("REUSE1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusCompleted, sess.Status)
		require.NotNil(t, sess.Credentials)
	})

	t.Run("completed slot counts as available for a new session", func(t *testing.T) {
		assert.True(t, s.IsAvailable("REUSE1"))
		assert.NoError(t, s.Create("REUSE1", newSession("REUSE1", time.Now())))

		sess, err := s.Get("REUSE1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusPending, sess.Status)
		assert.Nil(t, sess.Credentials)
	})
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	ttl := 10 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := NewMemoryStore(ttl)
	now := base
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Create("OLD001", newSession("OLD001", base.Add(-ttl-time.Minute))))
	require.NoError(t, s.Create("OLD002", newSession("OLD002", base.Add(-ttl-time.Second))))
	require.NoError(t, s.Create("FRESH1", newSession("FRESH1", base)))

	removed := s.DeleteExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())

	_, err := s.Get("FRESH1")
	assert.NoError(t, err)

	assert.Equal(t, 0, s.DeleteExpired())
}
