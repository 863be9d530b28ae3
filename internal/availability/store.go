package availability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/deskbook/internal/domain/slot"
)

// Fetcher is the network side of the store, satisfied by the API client.
type Fetcher interface {
	FetchDayAvailability(ctx context.Context, spaceID int64, day slot.Day) (*slot.Grid, error)
}

// UnavailableError means the grid for a key could not be (re)loaded. The
// cached grid, if any, is left untouched: availability is unknown, not empty.
type UnavailableError struct {
	SpaceID int64
	Day     slot.Day
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("availability unavailable for space %d on %s: %v", e.SpaceID, e.Day, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

type key struct {
	SpaceID int64
	Day     string
}

type entry struct {
	grid *slot.Grid
	// seq numbers fetches as they are initiated; applied records the seq of
	// the fetch whose result currently sits in grid. A response from an older
	// fetch that lands after a newer one is dropped, not applied.
	seq     uint64
	applied uint64
}

// Store caches one grid per (space, date) key. It is the only owner of the
// cache: grids go in whole on fetch and out whole on invalidate, never
// patched. Safe for use from the request goroutines and the background
// refresher at once.
type Store struct {
	fetcher Fetcher
	log     *zap.Logger

	mu      sync.Mutex
	entries map[key]*entry
}

func NewStore(f Fetcher, log *zap.Logger) *Store {
	return &Store{
		fetcher: f,
		log:     log,
		entries: make(map[key]*entry),
	}
}

// Fetch performs one network call for the key and returns the freshest grid
// known afterwards. If a newer fetch for the same key completed while this
// one was in flight, this call's response is discarded and the newer grid is
// returned instead: the most recently initiated fetch wins.
func (s *Store) Fetch(ctx context.Context, spaceID int64, day slot.Day) (*slot.Grid, error) {
	k := key{SpaceID: spaceID, Day: day.String()}

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	e.seq++
	tok := e.seq
	s.mu.Unlock()

	g, err := s.fetcher.FetchDayAvailability(ctx, spaceID, day)
	if err != nil {
		return nil, &UnavailableError{SpaceID: spaceID, Day: day, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Invalidate may have dropped the entry while we were fetching; a fresh
	// one restarts the sequence and this response is stale by definition.
	cur, ok := s.entries[k]
	if !ok || cur != e {
		return g, nil
	}
	if tok > e.applied {
		e.applied = tok
		e.grid = g
	} else {
		s.log.Debug("dropped stale availability response",
			zap.Int64("space", spaceID),
			zap.String("day", day.String()),
			zap.Uint64("token", tok),
			zap.Uint64("applied", e.applied),
		)
	}
	return e.grid, nil
}

// Cached returns the last successfully fetched grid for the key, if any.
func (s *Store) Cached(spaceID int64, day slot.Day) (*slot.Grid, bool) {
	k := key{SpaceID: spaceID, Day: day.String()}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok || e.grid == nil {
		return nil, false
	}
	return e.grid, true
}

// Invalidate drops the cached grid for the key so the next Fetch is a hard
// refresh. Called after a successful booking for the key, and on a booking
// conflict: the conflict itself proves the cached view was stale.
func (s *Store) Invalidate(spaceID int64, day slot.Day) {
	k := key{SpaceID: spaceID, Day: day.String()}
	s.mu.Lock()
	delete(s.entries, k)
	s.mu.Unlock()
	s.log.Debug("invalidated availability", zap.Int64("space", spaceID), zap.String("day", day.String()))
}
