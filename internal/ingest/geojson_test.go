package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const buildingsFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.1780, 51.5575]},
      "properties": {
        "ListEntry": 1113344,
        "Name": "Burgh House",
        "Grade": "2*",
        "LocalAuthority": "LB Camden",
        "Postcode": "NW3 1LT",
        "Location": "New End Square",
        "ListDate": "1950-05-25",
        "Hyperlink": "https://historicengland.org.uk/listing/the-list/list-entry/1113344"
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.2000, 51.4000]},
      "properties": {"ListEntry": 999, "Name": "Out Of Bounds", "Grade": "II"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.1780, 51.5570]},
      "properties": {"Name": "No Entry Number", "Grade": "II"}
    }
  ]
}`

func TestLoadListedBuildingsGeoJSON(t *testing.T) {
	path := writeTemp(t, "buildings.geojson", buildingsFC)

	buildings, stats, err := LoadListedBuildingsGeoJSON(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 2, stats.Skipped)
	require.Len(t, buildings, 1)

	b := buildings[0]
	assert.Equal(t, "1113344", b.ListEntry)
	assert.Equal(t, "Burgh House", b.Name)
	assert.Equal(t, model.GradeIIStar, b.Grade)
	assert.InDelta(t, 51.5575, b.Latitude, 1e-9)
	assert.InDelta(t, -0.1780, b.Longitude, 1e-9)
	assert.Equal(t, "Camden", b.Borough)
	assert.Equal(t, "NW3 1LT", b.Postcode)
	assert.Equal(t, "New End Square", b.Address)
	require.NotNil(t, b.ListDate)
	assert.Equal(t, time.Date(1950, 5, 25, 0, 0, 0, 0, time.UTC), *b.ListDate)
	assert.Contains(t, b.URL, "1113344")
}

func TestLoadListedBuildingsGeoJSON_BareArray(t *testing.T) {
	path := writeTemp(t, "buildings.json", `[
  {"list_entry_number": "1067240", "name": "Fenton House", "grade": "I",
   "Latitude": 51.5556, "Longitude": -0.1797, "borough": "Camden"},
  {"name": "Missing Everything"}
]`)

	buildings, stats, err := LoadListedBuildingsGeoJSON(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Loaded)
	require.Len(t, buildings, 1)
	assert.Equal(t, "1067240", buildings[0].ListEntry)
	assert.Equal(t, model.GradeI, buildings[0].Grade)
	assert.InDelta(t, 51.5556, buildings[0].Latitude, 1e-9)
}

func TestLoadListedBuildingsGeoJSON_BoroughFilter(t *testing.T) {
	path := writeTemp(t, "buildings.geojson", buildingsFC)

	buildings, _, err := LoadListedBuildingsGeoJSON(path, Options{Borough: "Westminster"})
	require.NoError(t, err)
	assert.Empty(t, buildings)

	buildings, _, err = LoadListedBuildingsGeoJSON(path, Options{Borough: "Camden"})
	require.NoError(t, err)
	assert.Len(t, buildings, 1)
}

func TestLoadListedBuildingsGeoJSON_MissingFile(t *testing.T) {
	_, _, err := LoadListedBuildingsGeoJSON(filepath.Join(t.TempDir(), "nope.geojson"), Options{})
	assert.Error(t, err)
}

const areasFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[-0.186, 51.554], [-0.170, 51.554], [-0.170, 51.566], [-0.186, 51.566], [-0.186, 51.554]]]},
      "properties": {
        "name": "Hampstead Village",
        "borough": "LB Camden",
        "has_article_4": true,
        "article_4_restrictions": ["No front garden paving", "No satellite dishes"],
        "designation_date": "1968-07-01",
        "id": 7
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-0.200, 51.550], [-0.190, 51.550], [-0.190, 51.560], [-0.200, 51.560], [-0.200, 51.550]]]]},
      "properties": {"CA_NAME": "Fitzjohns Netherhall", "LOCAL_AUTHORITY": "LB Camden"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[-0.05, 51.53], [-0.04, 51.53], [-0.04, 51.54], [-0.05, 51.54], [-0.05, 51.53]]]},
      "properties": {"name": "Not Covered", "borough": "LB Hackney"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.18, 51.55]},
      "properties": {"name": "Wrong Geometry", "borough": "Camden"}
    }
  ]
}`

func TestLoadConservationAreasGeoJSON(t *testing.T) {
	path := writeTemp(t, "areas.geojson", areasFC)

	areas, stats, err := LoadConservationAreasGeoJSON(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 2, stats.Skipped)
	require.Len(t, areas, 2)

	hv := areas[0]
	assert.Equal(t, int64(7), hv.ID)
	assert.Equal(t, "Hampstead Village", hv.Name)
	assert.Equal(t, "Camden", hv.Borough)
	assert.True(t, hv.HasArticle4)
	assert.Equal(t, "No front garden paving, No satellite dishes", hv.Article4Details)
	require.NotNil(t, hv.DesignationDate)
	assert.Equal(t, 1968, hv.DesignationDate.Year())
	require.NotNil(t, hv.Boundary)
	assert.Equal(t, 1, hv.Boundary.NumPolygons())

	fn := areas[1]
	assert.Equal(t, "Fitzjohns Netherhall", fn.Name)
	assert.Equal(t, "Camden", fn.Borough)
	assert.False(t, fn.HasArticle4)
	assert.Empty(t, fn.Article4Details)
	// Assigned after the highest explicit ID.
	assert.Equal(t, int64(8), fn.ID)
}

func TestLoadConservationAreasGeoJSON_NoFeatures(t *testing.T) {
	path := writeTemp(t, "empty.geojson", `{"type": "FeatureCollection", "features": []}`)
	_, _, err := LoadConservationAreasGeoJSON(path, Options{})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"1968-07-01", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"01/07/1968", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"01-07-1968", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"1968/07/01", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"1 July 1968", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"July 1, 1968", time.Date(1968, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := parseDate(tt.raw)
		require.NotNil(t, got, tt.raw)
		assert.Equal(t, tt.want, *got, tt.raw)
	}

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("not a date"))
}

func TestArticle4Details(t *testing.T) {
	assert.Equal(t, "No rear extensions",
		article4Details(map[string]any{"article_4_restrictions": "No rear extensions"}))
	assert.Equal(t, "a, b",
		article4Details(map[string]any{"article_4_restrictions": []any{"a", "b"}}))
	assert.Equal(t, "legacy text",
		article4Details(map[string]any{"A4_RESTRICTIONS": "legacy text"}))
	assert.Empty(t, article4Details(map[string]any{}))
}

func TestIsTargetBorough(t *testing.T) {
	assert.True(t, isTargetBorough("Camden"))
	assert.True(t, isTargetBorough("London Borough of Camden"))
	assert.True(t, isTargetBorough(""))
	assert.False(t, isTargetBorough("Hackney"))
	assert.False(t, isTargetBorough("Croydon"))
}
