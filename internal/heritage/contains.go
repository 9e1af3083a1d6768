package heritage

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// ContainingAreas returns every conservation area whose boundary contains
// the point. Zero, one, or many areas may match; overlapping designations
// are legitimate and the caller tie-breaks.
func (s *Snapshot) ContainingAreas(lat, lng float64) []*model.ConservationArea {
	p := geom.Coord{lng, lat}

	var matched []*model.ConservationArea
	for i := range s.Areas {
		area := &s.Areas[i]
		if area.Boundary == nil {
			continue
		}
		// Cheap rejection before the full ring tests.
		if !area.Boundary.Bounds().OverlapsPoint(geom.XY, p) {
			continue
		}
		if multiPolygonContains(area.Boundary, p) {
			matched = append(matched, area)
		}
	}
	return matched
}

// multiPolygonContains tests containment across all parts of a
// multi-polygon. Parts OR together: the point is contained if any part
// contains it.
func multiPolygonContains(mp *geom.MultiPolygon, p geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), p) {
			return true
		}
	}
	return false
}

// polygonContains tests a single polygon with holes. The boundary is
// inclusive by convention: a point exactly on any ring edge or vertex counts
// as contained, including the rings of holes. A point strictly inside a hole
// is not contained even though it is inside the outer ring.
func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}

	switch xy.LocatePointInRing(geom.XY, p, poly.LinearRing(0).FlatCoords()) {
	case location.Exterior:
		return false
	case location.Boundary:
		return true
	}

	// Inside the outer ring; holes carve out their interiors only.
	for i := 1; i < poly.NumLinearRings(); i++ {
		switch xy.LocatePointInRing(geom.XY, p, poly.LinearRing(i).FlatCoords()) {
		case location.Boundary:
			return true
		case location.Interior:
			return false
		}
	}
	return true
}
