package heritage

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Bounds is the service's coverage area. Queries outside it are rejected
// with OutOfCoverageArea rather than silently resolved GREEN.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// Contains reports whether the coordinate lies inside the bounds (inclusive).
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// NWLondonBounds is the default coverage area.
func NWLondonBounds() Bounds {
	return Bounds{MinLat: 51.50, MaxLat: 51.65, MinLng: -0.30, MaxLng: 0.00}
}

// ServiceConfig tunes the resolution service.
type ServiceConfig struct {
	// MaxRadiusMeters bounds the nearest-building search. Listed-building
	// points are approximate centroids; a larger radius risks false
	// positives on dense terraces.
	MaxRadiusMeters float64 `yaml:"max_radius_meters" mapstructure:"max_radius_meters"`

	// MatcherTimeout bounds each matcher call so a pathological dataset
	// cannot hang the caller.
	MatcherTimeout time.Duration `yaml:"matcher_timeout" mapstructure:"matcher_timeout"`

	// CacheTTL is the result cache expiry.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// CacheMaxEntries bounds the result cache size.
	CacheMaxEntries int `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`

	// Coverage is the accepted query region.
	Coverage Bounds `yaml:"coverage" mapstructure:"coverage"`
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxRadiusMeters: 50,
		MatcherTimeout:  2 * time.Second,
		CacheTTL:        6 * time.Hour,
		CacheMaxEntries: 10000,
		Coverage:        NWLondonBounds(),
	}
}

// Recorder receives successful resolutions for audit. Implementations must
// tolerate being called concurrently.
type Recorder interface {
	RecordResolution(ctx context.Context, res *model.Resolution) error
}

// ServiceStats exposes matcher and cache counters.
type ServiceStats struct {
	Resolutions   int64      `json:"resolutions"`
	MatcherCalls  int64      `json:"matcher_calls"`
	Failures      int64      `json:"failures"`
	Cache         CacheStats `json:"cache"`
	SnapshotReady bool       `json:"snapshot_ready"`
}

// Service is the resolution facade: the only entry point external callers
// use. It validates queries, consults the cache, fans out to both matchers
// concurrently against one immutable snapshot, and combines the outputs.
type Service struct {
	cfg      ServiceConfig
	store    *Store
	cache    *ResultCache
	recorder Recorder

	now func() time.Time

	resolutions  atomic.Int64
	matcherCalls atomic.Int64
	failures     atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder attaches an audit recorder for successful resolutions.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service to a Store. The cache is cleared automatically
// whenever the store loads a new snapshot.
func NewService(cfg ServiceConfig, store *Store, opts ...ServiceOption) *Service {
	if cfg.MaxRadiusMeters <= 0 {
		cfg.MaxRadiusMeters = 50
	}
	if cfg.MatcherTimeout <= 0 {
		cfg.MatcherTimeout = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}

	s := &Service{
		cfg:   cfg,
		store: store,
		cache: NewResultCache(cfg.CacheMaxEntries, cfg.CacheTTL),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	store.OnLoad(func(*Snapshot) { s.cache.Clear() })
	return s
}

// Resolve classifies a coordinate. On any matcher or store failure the whole
// resolution fails: a wrong classification has legal consequences, so the
// service fails closed rather than guessing. The cache is written only after
// both matchers return successfully.
func (s *Service) Resolve(ctx context.Context, q model.Query) (*model.Resolution, error) {
	if err := s.validate(q); err != nil {
		s.failures.Add(1)
		return nil, err
	}

	now := s.now()
	if cached := s.cache.Get(q.Latitude, q.Longitude, now); cached != nil {
		s.resolutions.Add(1)
		return cached, nil
	}

	snap, err := s.store.Current()
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}

	// Fan out: the matchers are independent and read the same immutable
	// snapshot, with a join point at the resolver.
	var building *model.BuildingMatch
	var areas []*model.ConservationArea

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.matcherCalls.Add(1)
		building, err = runMatcher(gCtx, "nearest-point", s.cfg.MatcherTimeout, func() *model.BuildingMatch {
			return snap.NearestBuilding(q.Latitude, q.Longitude, s.cfg.MaxRadiusMeters)
		})
		return err
	})
	g.Go(func() error {
		var err error
		s.matcherCalls.Add(1)
		areas, err = runMatcher(gCtx, "point-in-polygon", s.cfg.MatcherTimeout, func() []*model.ConservationArea {
			return snap.ContainingAreas(q.Latitude, q.Longitude)
		})
		return err
	})

	if err := g.Wait(); err != nil {
		s.failures.Add(1)
		return nil, err
	}

	correlationID := uuid.New().String()
	res := Resolve(q, building, areas, correlationID, now)
	s.cache.Put(q.Latitude, q.Longitude, res, now)
	s.resolutions.Add(1)

	zap.L().Debug("heritage: resolved",
		zap.String("correlation_id", correlationID),
		zap.String("status", string(res.Status)),
		zap.Float64("lat", q.Latitude),
		zap.Float64("lng", q.Longitude),
	)

	if s.recorder != nil {
		if err := s.recorder.RecordResolution(ctx, res); err != nil {
			zap.L().Warn("heritage: failed to record resolution",
				zap.String("correlation_id", correlationID),
				zap.Error(err),
			)
		}
	}
	return res, nil
}

// runMatcher executes a matcher with a bounded time budget. The matcher
// itself is CPU-bound and cannot be interrupted, so the budget is enforced
// at the join: the caller gets MatcherTimeout and the stray goroutine's
// result is discarded.
func runMatcher[T any](ctx context.Context, name string, timeout time.Duration, fn func() T) (T, error) {
	done := make(chan T, 1)
	go func() { done <- fn() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out, nil
	case <-timer.C:
		return zero, ErrMatcherTimeout(name)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrMatcherTimeout(name)
		}
		return zero, ctx.Err()
	}
}

func (s *Service) validate(q model.Query) error {
	if math.IsNaN(q.Latitude) || math.IsInf(q.Latitude, 0) ||
		math.IsNaN(q.Longitude) || math.IsInf(q.Longitude, 0) {
		return ErrInvalidCoordinate(q.Latitude, q.Longitude)
	}
	if q.Latitude < -90 || q.Latitude > 90 || q.Longitude < -180 || q.Longitude > 180 {
		return ErrInvalidCoordinate(q.Latitude, q.Longitude)
	}
	if !s.cfg.Coverage.Contains(q.Latitude, q.Longitude) {
		return ErrOutOfCoverage(q.Latitude, q.Longitude)
	}
	return nil
}

// Stats returns service counters plus the cache's.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Resolutions:   s.resolutions.Load(),
		MatcherCalls:  s.matcherCalls.Load(),
		Failures:      s.failures.Load(),
		Cache:         s.cache.Stats(),
		SnapshotReady: s.store.Ready(),
	}
}

// MatcherCallCount exposes the matcher invocation counter for idempotence
// verification.
func (s *Service) MatcherCallCount() int64 {
	return s.matcherCalls.Load()
}
