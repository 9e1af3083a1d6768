// Package refresh rebuilds the in-memory snapshot from the reference
// datasets on a schedule. Reloads happen out of band: the engine keeps
// serving the previous snapshot until the new one swaps in.
package refresh

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/ingest"
	"github.com/heritage-watch/heritage-cli/internal/model"
	"github.com/heritage-watch/heritage-cli/internal/resilience"
)

// Source produces a full set of reference records.
type Source interface {
	Load(ctx context.Context) ([]model.ListedBuilding, []model.ConservationArea, error)
}

// ManifestSource loads records from an ingest manifest. The manifest is
// re-read on every refresh so dataset edits take effect without a restart.
type ManifestSource struct {
	Path    string
	Options ingest.Options
}

func (m ManifestSource) Load(ctx context.Context) ([]model.ListedBuilding, []model.ConservationArea, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "refresh: load canceled")
	}
	manifest, err := ingest.LoadManifest(m.Path)
	if err != nil {
		return nil, nil, err
	}
	return manifest.Load(m.Options)
}

// Refresher periodically reloads the snapshot store.
type Refresher struct {
	source     Source
	store      *heritage.Store
	interval   time.Duration
	retry      resilience.RetryConfig
	cellMeters float64
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithRetry overrides the reload retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Refresher) { r.retry = cfg }
}

// WithCellMeters overrides the spatial index cell size.
func WithCellMeters(m float64) Option {
	return func(r *Refresher) { r.cellMeters = m }
}

// New creates a Refresher. Interval <= 0 disables the periodic loop;
// RefreshNow still works.
func New(source Source, store *heritage.Store, interval time.Duration, opts ...Option) *Refresher {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("datasets", "reload")

	r := &Refresher{
		source:     source,
		store:      store,
		interval:   interval,
		retry:      retry,
		cellMeters: 50,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshNow reloads the datasets and swaps the snapshot. Transient load
// failures are retried; the previous snapshot stays live throughout.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	start := time.Now()

	type loaded struct {
		buildings []model.ListedBuilding
		areas     []model.ConservationArea
	}

	result, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (loaded, error) {
		buildings, areas, err := r.source.Load(ctx)
		if err != nil {
			return loaded{}, err
		}
		return loaded{buildings: buildings, areas: areas}, nil
	})
	if err != nil {
		return eris.Wrap(err, "refresh: load datasets")
	}

	snap := r.store.Load(result.buildings, result.areas, r.cellMeters)
	zap.L().Info("refresh: snapshot swapped",
		zap.Int("buildings", len(snap.Buildings)),
		zap.Int("areas", len(snap.Areas)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Run refreshes on the configured interval until the context is canceled.
// A failed refresh is logged and retried at the next tick; the previous
// snapshot keeps serving.
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshNow(ctx); err != nil {
				zap.L().Error("refresh: scheduled reload failed", zap.Error(err))
			}
		}
	}
}
