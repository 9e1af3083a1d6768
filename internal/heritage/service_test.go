package heritage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// londonBounds widens coverage so far-from-Hampstead GREEN scenarios stay in
// region.
func londonBounds() Bounds {
	return Bounds{MinLat: 51.2867, MaxLat: 51.6919, MinLng: -0.5103, MaxLng: 0.3340}
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *Store) {
	t.Helper()
	store := loadedStore()
	cfg := DefaultServiceConfig()
	cfg.Coverage = londonBounds()
	return NewService(cfg, store, opts...), store
}

func TestService_ResolveRed(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.5576, Longitude: -0.1781})
	require.NoError(t, err)

	assert.Equal(t, model.StatusRed, res.Status)
	require.NotNil(t, res.Building)
	assert.Equal(t, "1113344", res.Building.ListEntry)
	assert.InDelta(t, 13.2, res.DistanceMeters, 1.5)
	assert.Nil(t, res.Area)
	assert.NotEmpty(t, res.CorrelationID)
}

func TestService_ResolveAmber(t *testing.T) {
	svc, _ := newTestService(t)

	// Inside Hampstead Village, ~300m from the nearest building.
	res, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.5640, Longitude: -0.1710})
	require.NoError(t, err)

	assert.Equal(t, model.StatusAmber, res.Status)
	require.NotNil(t, res.Area)
	assert.Equal(t, "Hampstead Village", res.Area.Name)
	assert.True(t, res.HasArticle4)
	assert.Nil(t, res.Building)
}

func TestService_ResolveGreen(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.4000, Longitude: -0.2000})
	require.NoError(t, err)

	assert.Equal(t, model.StatusGreen, res.Status)
	assert.Nil(t, res.Building)
	assert.Nil(t, res.Area)
}

func TestService_PriorityLaw(t *testing.T) {
	// A point simultaneously within radius of a building and inside a
	// conservation area must always resolve RED.
	svc, _ := newTestService(t)

	res, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.5575, Longitude: -0.1780})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRed, res.Status)
	assert.Nil(t, res.Area)
}

func TestService_InvalidCoordinate(t *testing.T) {
	svc, _ := newTestService(t)

	for _, q := range []model.Query{
		{Latitude: math.NaN(), Longitude: -0.18},
		{Latitude: 51.55, Longitude: math.Inf(1)},
		{Latitude: 95, Longitude: -0.18},
		{Latitude: 51.55, Longitude: 200},
	} {
		_, err := svc.Resolve(context.Background(), q)
		require.Error(t, err)
		assert.Equal(t, CodeInvalidCoordinate, CodeOf(err))
		assert.False(t, IsRetryable(err))
	}
}

func TestService_OutOfCoverage(t *testing.T) {
	svc, _ := newTestService(t)

	// Valid coordinate, outside the coverage box: defined error, not GREEN.
	_, err := svc.Resolve(context.Background(), model.Query{Latitude: 48.8566, Longitude: 2.3522})
	require.Error(t, err)
	assert.Equal(t, CodeOutOfCoverageArea, CodeOf(err))
	assert.False(t, IsRetryable(err))
}

func TestService_StoreNotReady(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Coverage = londonBounds()
	svc := NewService(cfg, NewStore())

	_, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.5575, Longitude: -0.1780})
	require.Error(t, err)
	assert.Equal(t, CodeStoreNotReady, CodeOf(err))
	assert.True(t, IsRetryable(err))
}

func TestService_CacheIdempotence(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, WithClock(func() time.Time { return fixed }))

	q := model.Query{Latitude: 51.5576, Longitude: -0.1781}

	first, err := svc.Resolve(context.Background(), q)
	require.NoError(t, err)
	callsAfterFirst := svc.MatcherCallCount()

	second, err := svc.Resolve(context.Background(), q)
	require.NoError(t, err)

	// Identical result, and the matchers did not run again.
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, svc.MatcherCallCount())
}

func TestService_CacheKeyQuantization(t *testing.T) {
	svc, _ := newTestService(t)

	q1 := model.Query{Latitude: 51.557600, Longitude: -0.178100}
	q2 := model.Query{Latitude: 51.5576004, Longitude: -0.1781004}

	first, err := svc.Resolve(context.Background(), q1)
	require.NoError(t, err)
	calls := svc.MatcherCallCount()

	second, err := svc.Resolve(context.Background(), q2)
	require.NoError(t, err)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.Equal(t, calls, svc.MatcherCallCount())
}

func TestService_SnapshotReloadInvalidatesCache(t *testing.T) {
	svc, store := newTestService(t)

	q := model.Query{Latitude: 51.5640, Longitude: -0.1710}
	res, err := svc.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAmber, res.Status)

	// Reload with the conservation area gone: the previous AMBER must be
	// recomputed, not served stale.
	store.Load(fixtureBuildings(), nil, 50)

	res, err = svc.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGreen, res.Status)
}

func TestService_NoCacheWriteOnError(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Coverage = londonBounds()
	store := NewStore()
	svc := NewService(cfg, store)

	q := model.Query{Latitude: 51.5576, Longitude: -0.1781}
	_, err := svc.Resolve(context.Background(), q)
	require.Error(t, err)

	// Load data and retry: must compute fresh, not serve a cached failure.
	store.Load(fixtureBuildings(), fixtureAreas(), 50)
	res, err := svc.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRed, res.Status)
}

func TestService_OverlapTieBreakEndToEnd(t *testing.T) {
	store := NewStore()
	store.Load(nil, overlappingAreas(), 50)
	cfg := DefaultServiceConfig()
	cfg.Coverage = londonBounds()
	svc := NewService(cfg, store)

	res, err := svc.Resolve(context.Background(), model.Query{Latitude: 51.5600, Longitude: -0.1800})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAmber, res.Status)
	assert.Equal(t, "With Article 4", res.Area.Name)
	assert.True(t, res.HasArticle4)
}

type countingRecorder struct {
	calls int
}

func (r *countingRecorder) RecordResolution(_ context.Context, _ *model.Resolution) error {
	r.calls++
	return nil
}

func TestService_RecorderInvokedOnSuccessOnly(t *testing.T) {
	rec := &countingRecorder{}
	svc, _ := newTestService(t, WithRecorder(rec))

	_, err := svc.Resolve(context.Background(), model.Query{Latitude: 95, Longitude: 0})
	require.Error(t, err)
	assert.Equal(t, 0, rec.calls)

	_, err = svc.Resolve(context.Background(), model.Query{Latitude: 51.5576, Longitude: -0.1781})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestService_Stats(t *testing.T) {
	svc, _ := newTestService(t)

	_, _ = svc.Resolve(context.Background(), model.Query{Latitude: 51.5576, Longitude: -0.1781})
	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Resolutions)
	assert.Equal(t, int64(2), stats.MatcherCalls)
	assert.True(t, stats.SnapshotReady)
}

func TestRunMatcher_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, err := runMatcher(context.Background(), "nearest-point", 10*time.Millisecond, func() int {
		<-block
		return 0
	})
	require.Error(t, err)
	assert.Equal(t, CodeMatcherTimeout, CodeOf(err))
	assert.True(t, IsRetryable(err))
}

func TestRunMatcher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := runMatcher(ctx, "nearest-point", time.Second, func() int {
		<-block
		return 0
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Code(""), CodeOf(err))
}

func TestRunMatcher_DeadlineMapsToTimeout(t *testing.T) {
	// A request deadline expiring mid-matcher surfaces as a matcher timeout,
	// not a bare context error, so callers see a retryable engine code.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := runMatcher(ctx, "point-in-polygon", time.Second, func() int {
		<-block
		return 0
	})
	require.Error(t, err)
	assert.Equal(t, CodeMatcherTimeout, CodeOf(err))
	assert.True(t, IsRetryable(err))
}

func TestRunMatcher_CompletesBeforeTimeout(t *testing.T) {
	out, err := runMatcher(context.Background(), "nearest-point", time.Second, func() int {
		return 42
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
