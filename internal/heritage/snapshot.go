// Package heritage implements the heritage status resolution engine:
// nearest listed-building matching, conservation-area containment, and
// RED/AMBER/GREEN status derivation.
package heritage

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Snapshot is an immutable view of both reference datasets plus the derived
// search structures. A snapshot is built once at load time and shared
// read-only across arbitrarily many concurrent resolutions.
type Snapshot struct {
	Buildings []model.ListedBuilding
	Areas     []model.ConservationArea

	grid     *pointGrid
	LoadedAt time.Time
}

// Store owns the active snapshot. Load swaps the snapshot atomically so a
// refresh never blocks or corrupts in-flight queries; readers keep whatever
// snapshot they obtained until their request completes.
type Store struct {
	current atomic.Pointer[Snapshot]

	// onLoad hooks run after every successful swap (cache invalidation).
	onLoad []func(*Snapshot)
}

// NewStore creates an empty Store. Queries fail with StoreNotReady until the
// first Load.
func NewStore() *Store {
	return &Store{}
}

// OnLoad registers a hook invoked after each snapshot swap. Not safe to call
// concurrently with Load; register hooks during wiring.
func (s *Store) OnLoad(fn func(*Snapshot)) {
	s.onLoad = append(s.onLoad, fn)
}

// Load builds a new snapshot from the given datasets and atomically replaces
// the active one. The slices are owned by the snapshot after this call.
func (s *Store) Load(buildings []model.ListedBuilding, areas []model.ConservationArea, cellMeters float64) *Snapshot {
	snap := &Snapshot{
		Buildings: buildings,
		Areas:     areas,
		grid:      newPointGrid(buildings, cellMeters),
		LoadedAt:  time.Now().UTC(),
	}
	s.current.Store(snap)

	zap.L().Info("heritage: snapshot loaded",
		zap.Int("buildings", len(buildings)),
		zap.Int("conservation_areas", len(areas)),
	)

	for _, fn := range s.onLoad {
		fn(snap)
	}
	return snap
}

// Current returns the active snapshot, or StoreNotReady if none has ever
// been loaded.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrStoreNotReady()
	}
	return snap, nil
}

// Ready reports whether a snapshot has been loaded.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}
