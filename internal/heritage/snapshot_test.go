package heritage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

func TestStore_NotReady(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Ready())

	_, err := s.Current()
	require.Error(t, err)
	assert.Equal(t, CodeStoreNotReady, CodeOf(err))
}

func TestStore_LoadSwapsAtomically(t *testing.T) {
	s := NewStore()
	s.Load(fixtureBuildings(), fixtureAreas(), 50)

	old, err := s.Current()
	require.NoError(t, err)
	assert.Len(t, old.Buildings, 2)

	// An in-flight query holding the old snapshot keeps seeing it after a
	// reload replaces the active one.
	s.Load(nil, nil, 50)
	assert.Len(t, old.Buildings, 2)

	fresh, err := s.Current()
	require.NoError(t, err)
	assert.Empty(t, fresh.Buildings)
	assert.NotEqual(t, old, fresh)
}

func TestStore_OnLoadHook(t *testing.T) {
	s := NewStore()
	var loads int
	s.OnLoad(func(snap *Snapshot) {
		loads++
		assert.NotNil(t, snap)
	})

	s.Load(nil, nil, 50)
	s.Load([]model.ListedBuilding{{ListEntry: "1"}}, nil, 50)
	assert.Equal(t, 2, loads)
}
