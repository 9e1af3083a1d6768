// Package ingest loads heritage reference datasets from GeoJSON and
// shapefile sources and normalizes them into engine records.
package ingest

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/model"
)

// targetBoroughs are the local authorities covered by the service.
var targetBoroughs = []string{
	"Camden",
	"Barnet",
	"Westminster",
	"Haringey",
	"Brent",
	"Islington",
}

// isTargetBorough reports whether a normalized borough name falls inside the
// covered area. Empty borough names pass; many source records omit the field
// and the coordinate bounds filter catches strays.
func isTargetBorough(borough string) bool {
	if borough == "" {
		return true
	}
	for _, t := range targetBoroughs {
		if strings.EqualFold(borough, t) || strings.Contains(strings.ToLower(borough), strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Options control dataset filtering during a load.
type Options struct {
	// Coverage drops records outside the bounding box. Zero value means
	// the NW London default.
	Coverage heritage.Bounds

	// Borough, when set, keeps only records for that borough.
	Borough string
}

func (o Options) coverage() heritage.Bounds {
	if o.Coverage == (heritage.Bounds{}) {
		return heritage.NWLondonBounds()
	}
	return o.Coverage
}

// Stats counts records processed during a dataset load.
type Stats struct {
	Total   int
	Loaded  int
	Skipped int
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// dateFormats are the date layouts seen across source datasets.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2 January 2006",
	"January 2, 2006",
}

// parseDate parses a date in any of the known source layouts.
// Returns nil for empty or unparseable values.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	zap.L().Warn("ingest: unparseable date", zap.String("value", raw))
	return nil
}

// propString returns the first non-empty string value among the keys.
// Numeric values are formatted; source datasets are inconsistent about types.
func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// propFloat returns the first numeric value among the keys.
func propFloat(props map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := props[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// propBool returns the first truthy value among the keys.
func propBool(props map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := props[k].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "y", "1":
				return true
			}
		case float64:
			if v != 0 {
				return true
			}
		}
	}
	return false
}

// LoadListedBuildingsGeoJSON reads listed-building point records from a
// GeoJSON file. Accepts either a FeatureCollection or a bare array of
// property objects carrying Longitude/Latitude fields.
func LoadListedBuildingsGeoJSON(path string, opts Options) ([]model.ListedBuilding, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "ingest: read %s", path)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil || len(fc.Features) == 0 {
		// Fall back to a bare array of records.
		var records []map[string]any
		if arrErr := json.Unmarshal(data, &records); arrErr != nil {
			if err == nil {
				err = eris.Errorf("ingest: no features in %s", path)
			}
			return nil, Stats{}, eris.Wrapf(err, "ingest: parse %s", path)
		}
		fc.Features = make([]feature, len(records))
		for i, r := range records {
			fc.Features[i] = feature{Properties: r}
		}
	}

	var stats Stats
	buildings := make([]model.ListedBuilding, 0, len(fc.Features))

	for _, f := range fc.Features {
		stats.Total++
		b, ok := buildingFromFeature(f, opts)
		if !ok {
			stats.Skipped++
			continue
		}
		buildings = append(buildings, b)
		stats.Loaded++
	}

	zap.L().Info("ingest: loaded listed buildings",
		zap.String("path", path),
		zap.Int("total", stats.Total),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)

	return buildings, stats, nil
}

func buildingFromFeature(f feature, opts Options) (model.ListedBuilding, bool) {
	props := f.Properties
	if props == nil {
		return model.ListedBuilding{}, false
	}

	lat, lng, ok := featureCoords(f)
	if !ok {
		zap.L().Debug("ingest: building record without coordinates",
			zap.String("name", propString(props, "Name", "name")))
		return model.ListedBuilding{}, false
	}

	if !opts.coverage().Contains(lat, lng) {
		return model.ListedBuilding{}, false
	}

	borough := model.NormalizeBorough(propString(props, "LocalAuthority", "District", "Borough", "borough"))
	if !isTargetBorough(borough) {
		return model.ListedBuilding{}, false
	}
	if opts.Borough != "" && !strings.EqualFold(borough, opts.Borough) {
		return model.ListedBuilding{}, false
	}

	entry := propString(props, "ListEntry", "list_entry", "ListEntryNumber", "list_entry_number")
	if entry == "" {
		return model.ListedBuilding{}, false
	}

	return model.ListedBuilding{
		ListEntry: entry,
		Name:      propString(props, "Name", "name"),
		Grade:     model.NormalizeGrade(propString(props, "Grade", "grade")),
		Latitude:  lat,
		Longitude: lng,
		Borough:   borough,
		Postcode:  propString(props, "Postcode", "postcode"),
		Address:   propString(props, "Location", "Address", "address"),
		ListDate:  parseDate(propString(props, "ListDate", "DateListed", "list_date")),
		URL:       propString(props, "Hyperlink", "URL", "documentation_url"),
	}, true
}

// featureCoords extracts a point coordinate from the feature geometry,
// falling back to Longitude/Latitude properties.
func featureCoords(f feature) (lat, lng float64, ok bool) {
	if len(f.Geometry) > 0 {
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err == nil {
			if pt, isPoint := g.(*geom.Point); isPoint {
				c := pt.Coords()
				return c[1], c[0], true
			}
		}
	}

	lng, lngOK := propFloat(f.Properties, "Longitude", "longitude", "lng")
	lat, latOK := propFloat(f.Properties, "Latitude", "latitude", "lat")
	if lngOK && latOK {
		return lat, lng, true
	}
	return 0, 0, false
}

// LoadConservationAreasGeoJSON reads conservation area polygons from a
// GeoJSON FeatureCollection.
func LoadConservationAreasGeoJSON(path string, opts Options) ([]model.ConservationArea, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "ingest: read %s", path)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, Stats{}, eris.Wrapf(err, "ingest: parse %s", path)
	}
	if len(fc.Features) == 0 {
		return nil, Stats{}, eris.Errorf("ingest: no features in %s", path)
	}

	var stats Stats
	areas := make([]model.ConservationArea, 0, len(fc.Features))
	nextID := int64(1)

	for _, f := range fc.Features {
		stats.Total++
		a, ok := areaFromFeature(f, opts)
		if !ok {
			stats.Skipped++
			continue
		}
		if a.ID == 0 {
			a.ID = nextID
		}
		if a.ID >= nextID {
			nextID = a.ID + 1
		}
		areas = append(areas, a)
		stats.Loaded++
	}

	zap.L().Info("ingest: loaded conservation areas",
		zap.String("path", path),
		zap.Int("total", stats.Total),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)

	return areas, stats, nil
}

func areaFromFeature(f feature, opts Options) (model.ConservationArea, bool) {
	props := f.Properties
	if props == nil || len(f.Geometry) == 0 {
		return model.ConservationArea{}, false
	}

	var g geom.T
	if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
		zap.L().Debug("ingest: bad area geometry", zap.Error(err))
		return model.ConservationArea{}, false
	}

	boundary, ok := asMultiPolygon(g)
	if !ok {
		zap.L().Debug("ingest: unsupported area geometry type",
			zap.String("name", propString(props, "name", "Name")))
		return model.ConservationArea{}, false
	}

	borough := model.NormalizeBorough(propString(props,
		"borough", "Borough", "LOCAL_AUTHORITY", "LocalAuthority"))
	if !isTargetBorough(borough) {
		return model.ConservationArea{}, false
	}
	if opts.Borough != "" && !strings.EqualFold(borough, opts.Borough) {
		return model.ConservationArea{}, false
	}

	name := propString(props, "CA_NAME", "name", "Name", "NAME", "conservation_area_name")
	if name == "" {
		name = "Unknown Conservation Area"
	}

	hasArticle4 := propBool(props, "has_article_4", "ARTICLE_4", "article4")
	var details string
	if hasArticle4 {
		details = article4Details(props)
	}

	var id int64
	if v, found := propFloat(props, "id", "ca_id", "CA_REF", "reference", "REF"); found {
		id = int64(v)
	}

	return model.ConservationArea{
		ID:              id,
		Name:            name,
		Borough:         borough,
		HasArticle4:     hasArticle4,
		Article4Details: details,
		DesignationDate: parseDate(propString(props, "designation_date", "DATE_DESIGNATED")),
		Boundary:        boundary,
	}, true
}

// article4Details joins the restriction list into a single display string.
func article4Details(props map[string]any) string {
	switch v := props["article_4_restrictions"].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	if s, ok := props["A4_RESTRICTIONS"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// asMultiPolygon promotes a Polygon to a single-part MultiPolygon; other
// geometry types are rejected.
func asMultiPolygon(g geom.T) (*geom.MultiPolygon, bool) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, false
		}
		return t, true
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil, false
		}
		return mp, true
	default:
		return nil, false
	}
}
