package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacast/pairing-server-go/internal/model"
	"github.com/lumacast/pairing-server-go/internal/store"
)

func TestReaper_Sweep(t *testing.T) {
	ttl := 10 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	memStore := store.NewMemoryStore(ttl)
	memStore.SetClock(func() time.Time { return now })

	mk := func(code string, createdAt time.Time) {
		require.NoError(t, memStore.Create(code, &model.PairingSession{
			Code:      code,
			Status:    model.SessionStatusPending,
			CreatedAt: createdAt,
		}))
	}

	mk("OLD001", base.Add(-ttl-time.Minute))
	mk("FRESH1", base)
	mk("FRESH2", base.Add(-ttl/2))

	reaper := NewReaper(memStore, time.Minute)

	t.Run("removes only expired sessions", func(t *testing.T) {
		assert.Equal(t, 1, reaper.Sweep())
		assert.Equal(t, 2, memStore.Len())

		_, err := memStore.Get("FRESH1")
		assert.NoError(t, err)
	})

	t.Run("later sweep catches newly expired sessions", func(t *testing.T) {
		now = base.Add(ttl/2 + ttl + time.Second)
		assert.Equal(t, 2, reaper.Sweep())
		assert.Equal(t, 0, memStore.Len())
	})

	t.Run("sweep on an empty store is a no-op", func(t *testing.T) {
		assert.Equal(t, 0, reaper.Sweep())
	})
}

func TestReaper_StartStop(t *testing.T) {
	memStore := store.NewMemoryStore(time.Minute)
	reaper := NewReaper(memStore, 10*time.Millisecond)

	reaper.Start()
	time.Sleep(30 * time.Millisecond)
	reaper.Stop()

	// The run loop must exit after Stop; a second Stop would panic on a
	// closed channel, so we only assert the loop had time to tick.
	assert.Equal(t, 0, memStore.Len())
}
