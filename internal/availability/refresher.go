package availability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/deskbook/internal/domain/slot"
)

// Refresher re-fetches the active (space, date) keys on an interval so the
// grid a user is looking at tracks the server. It only ever goes through
// Store.Fetch, so a slow refresh response can never overwrite a fresher grid.
type Refresher struct {
	Store    *Store
	Interval time.Duration
	Log      *zap.Logger

	mu     sync.Mutex
	active map[key]slot.Day
}

// MarkActive registers a key for background refresh; typically called when a
// grid page is opened.
func (r *Refresher) MarkActive(spaceID int64, day slot.Day) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.active = make(map[key]slot.Day)
	}
	r.active[key{SpaceID: spaceID, Day: day.String()}] = day
}

// MarkInactive stops refreshing a key.
func (r *Refresher) MarkInactive(spaceID int64, day slot.Day) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key{SpaceID: spaceID, Day: day.String()})
}

// Run blocks, refreshing the active keys every interval until ctx ends.
func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	r.mu.Lock()
	keys := make(map[key]slot.Day, len(r.active))
	for k, d := range r.active {
		keys[k] = d
	}
	r.mu.Unlock()

	for k, d := range keys {
		if _, err := r.Store.Fetch(ctx, k.SpaceID, d); err != nil {
			// Last-known grid stays in place; the UI shows it as possibly
			// stale rather than empty.
			r.Log.Warn("background refresh failed",
				zap.Int64("space", k.SpaceID),
				zap.String("day", k.Day),
				zap.Error(err),
			)
		}
	}
}
