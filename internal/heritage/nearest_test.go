package heritage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		expectedMeters         float64
		delta                  float64
	}{
		{
			name: "zero distance",
			lat1: 51.5575, lng1: -0.1780, lat2: 51.5575, lng2: -0.1780,
			expectedMeters: 0, delta: 0.001,
		},
		{
			name: "one degree of latitude",
			lat1: 51.0, lng1: 0, lat2: 52.0, lng2: 0,
			expectedMeters: 111195, delta: 100,
		},
		{
			name: "spec scenario: ~14m in Hampstead",
			lat1: 51.5575, lng1: -0.1780, lat2: 51.5576, lng2: -0.1781,
			expectedMeters: 13.2, delta: 1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Haversine(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.expectedMeters, d, tt.delta)
		})
	}
}

func TestNearestBuilding_WithinRadius(t *testing.T) {
	store := loadedStore()
	snap, err := store.Current()
	require.NoError(t, err)

	m := snap.NearestBuilding(51.5576, -0.1781, 50)
	require.NotNil(t, m)
	assert.Equal(t, "1113344", m.Building.ListEntry)
	assert.InDelta(t, 13.2, m.DistanceMeters, 1.5)
}

func TestNearestBuilding_ExactPoint(t *testing.T) {
	store := loadedStore()
	snap, err := store.Current()
	require.NoError(t, err)

	m := snap.NearestBuilding(51.5575, -0.1780, 50)
	require.NotNil(t, m)
	assert.Equal(t, "1113344", m.Building.ListEntry)
	assert.InDelta(t, 0, m.DistanceMeters, 0.001)
}

func TestNearestBuilding_OutsideRadius(t *testing.T) {
	store := loadedStore()
	snap, err := store.Current()
	require.NoError(t, err)

	// ~300m from the nearest fixture building.
	m := snap.NearestBuilding(51.5600, -0.1800, 50)
	assert.Nil(t, m)
}

func TestNearestBuilding_EquidistantTieBreak(t *testing.T) {
	// Two buildings symmetric about the query point: the lower list-entry
	// number must win regardless of input order.
	buildings := []model.ListedBuilding{
		{ListEntry: "2000000", Name: "East Lodge", Latitude: 51.5575, Longitude: -0.17790},
		{ListEntry: "1000000", Name: "West Lodge", Latitude: 51.5575, Longitude: -0.17810},
	}

	for _, order := range [][]model.ListedBuilding{
		buildings,
		{buildings[1], buildings[0]},
	} {
		store := NewStore()
		store.Load(order, nil, 50)
		snap, err := store.Current()
		require.NoError(t, err)

		m := snap.NearestBuilding(51.5575, -0.1780, 50)
		require.NotNil(t, m)
		assert.Equal(t, "1000000", m.Building.ListEntry)
	}
}

func TestNearestBuilding_RadiusLargerThanCell(t *testing.T) {
	// A search radius wider than the grid cell size must widen the
	// neighborhood scan: a building ~120m away is in range at 200m even
	// though it sits several 50m cells from the query point.
	buildings := []model.ListedBuilding{
		{ListEntry: "1064786", Name: "Fenton House", Latitude: 51.5575 + 120.0/111320.0, Longitude: -0.1780},
	}
	store := NewStore()
	store.Load(buildings, nil, 50)
	snap, err := store.Current()
	require.NoError(t, err)

	m := snap.NearestBuilding(51.5575, -0.1780, 200)
	require.NotNil(t, m)
	assert.Equal(t, "1064786", m.Building.ListEntry)
	assert.InDelta(t, 120, m.DistanceMeters, 1)

	// The same building stays out of reach at the default 50m radius.
	assert.Nil(t, snap.NearestBuilding(51.5575, -0.1780, 50))
}

func TestNearestBuilding_NumericEntryTieBreak(t *testing.T) {
	// List entries compare numerically: "30000" beats "200000" even though
	// it sorts after it as a string.
	buildings := []model.ListedBuilding{
		{ListEntry: "200000", Name: "East Lodge", Latitude: 51.5575, Longitude: -0.17790},
		{ListEntry: "30000", Name: "West Lodge", Latitude: 51.5575, Longitude: -0.17810},
	}
	store := NewStore()
	store.Load(buildings, nil, 50)
	snap, err := store.Current()
	require.NoError(t, err)

	m := snap.NearestBuilding(51.5575, -0.1780, 50)
	require.NotNil(t, m)
	assert.Equal(t, "30000", m.Building.ListEntry)
}

func TestNearestBuilding_GridCrossesCells(t *testing.T) {
	// A building just inside the radius but across a grid cell boundary must
	// still be found by the neighborhood scan.
	buildings := []model.ListedBuilding{
		{ListEntry: "1234567", Name: "Boundary House", Latitude: 51.55745, Longitude: -0.17835},
	}
	store := NewStore()
	store.Load(buildings, nil, 50)
	snap, err := store.Current()
	require.NoError(t, err)

	m := snap.NearestBuilding(51.5575, -0.1780, 50)
	require.NotNil(t, m)
	assert.Equal(t, "1234567", m.Building.ListEntry)
	assert.Less(t, m.DistanceMeters, 50.0)
}

func TestNearestBuilding_EmptyDataset(t *testing.T) {
	store := NewStore()
	store.Load(nil, nil, 50)
	snap, err := store.Current()
	require.NoError(t, err)

	assert.Nil(t, snap.NearestBuilding(51.5575, -0.1780, 50))
}
