package heritage

import (
	"math"
	"strconv"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

const (
	// earthRadiusMeters is the mean Earth radius used by the haversine formula.
	earthRadiusMeters = 6371008.8

	// metersPerDegreeLat is the approximate north-south span of one degree.
	metersPerDegreeLat = 111320.0

	// distanceEpsilonMeters is the tie-break tolerance: candidates closer
	// together than this are treated as equidistant and ordered by list-entry
	// number so identical inputs always produce identical outputs.
	distanceEpsilonMeters = 0.5
)

// Haversine returns the great-circle distance in meters between two WGS84
// coordinates. The coverage area spans several kilometers, so a planar
// approximation would drift.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// pointGrid partitions listed-building points into coarse lat/lng cells so a
// radius query scans only a small neighborhood around the query point
// instead of the whole dataset.
type pointGrid struct {
	cells      map[gridKey][]int // indices into buildings
	latStep    float64
	lngStep    float64
	cellMeters float64
	points     []model.ListedBuilding
}

type gridKey struct {
	row, col int
}

// newPointGrid builds a grid with cells roughly cellMeters on a side. The
// longitude step is widened by the cosine of the dataset's mid-latitude so
// cells stay approximately square on the ground.
func newPointGrid(points []model.ListedBuilding, cellMeters float64) *pointGrid {
	if cellMeters <= 0 {
		cellMeters = 100
	}

	midLat := 51.5
	if len(points) > 0 {
		var sum float64
		for _, p := range points {
			sum += p.Latitude
		}
		midLat = sum / float64(len(points))
	}

	latStep := cellMeters / metersPerDegreeLat
	lngStep := cellMeters / (metersPerDegreeLat * math.Cos(midLat*math.Pi/180))

	g := &pointGrid{
		cells:      make(map[gridKey][]int),
		latStep:    latStep,
		lngStep:    lngStep,
		cellMeters: cellMeters,
		points:     points,
	}
	for i, p := range points {
		k := g.keyFor(p.Latitude, p.Longitude)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *pointGrid) keyFor(lat, lng float64) gridKey {
	return gridKey{
		row: int(math.Floor(lat / g.latStep)),
		col: int(math.Floor(lng / g.lngStep)),
	}
}

// NearestBuilding returns the closest listed building within radiusMeters of
// the query point, or nil if none is in range. Equidistant candidates
// (within distanceEpsilonMeters) resolve to the lower list-entry number.
func (s *Snapshot) NearestBuilding(lat, lng, radiusMeters float64) *model.BuildingMatch {
	g := s.grid
	center := g.keyFor(lat, lng)

	// Scan enough rings of neighbors to cover the radius. Cells are sized to
	// the default radius, so this is normally the 3x3 neighborhood, but a
	// configured radius larger than the cell must widen the scan or in-range
	// buildings in outer cells would be missed.
	rings := 1
	if radiusMeters > g.cellMeters {
		rings = int(math.Ceil(radiusMeters / g.cellMeters))
	}

	var best *model.ListedBuilding
	bestDist := math.Inf(1)

	for dr := -rings; dr <= rings; dr++ {
		for dc := -rings; dc <= rings; dc++ {
			k := gridKey{row: center.row + dr, col: center.col + dc}
			for _, idx := range g.cells[k] {
				cand := &g.points[idx]
				d := Haversine(lat, lng, cand.Latitude, cand.Longitude)
				if d > radiusMeters {
					continue
				}
				switch {
				case d < bestDist-distanceEpsilonMeters:
					best, bestDist = cand, d
				case math.Abs(d-bestDist) <= distanceEpsilonMeters && best != nil:
					if listEntryLess(cand.ListEntry, best.ListEntry) {
						best, bestDist = cand, d
					}
				}
			}
		}
	}

	if best == nil {
		return nil
	}
	return &model.BuildingMatch{Building: best, DistanceMeters: bestDist}
}

// listEntryLess orders register entries numerically when both parse as
// numbers ("30000" sorts before "200000") and falls back to string order for
// non-numeric identifiers.
func listEntryLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
