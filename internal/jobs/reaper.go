package jobs

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumacast/pairing-server-go/internal/store"
)

// Reaper periodically evicts sessions past the TTL. It is an
// optimization, not the authority on expiry: the store already treats
// expired sessions as not found on every read, so the sweep only
// reclaims memory. Expiry is silent; callers observe it as NotFound.
type Reaper struct {
	store    store.SessionStore
	interval time.Duration
	done     chan struct{}
}

func NewReaper(sessionStore store.SessionStore, interval time.Duration) *Reaper {
	return &Reaper{
		store:    sessionStore,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (r *Reaper) Start() {
	go r.run()
	log.Info().Dur("interval", r.interval).Msg("reaper started")
}

func (r *Reaper) Stop() {
	close(r.done)
	log.Info().Msg("reaper stopped")
}

func (r *Reaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sweep()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one eviction pass and returns how many sessions it removed.
func (r *Reaper) Sweep() int {
	removed := r.store.DeleteExpired()
	if removed > 0 {
		log.Info().Int("count", removed).Msg("reaped expired pairing sessions")
	}
	return removed
}
