package heritage

import (
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// rect builds a closed rectangular ring, lng/lat order.
func rect(minLng, minLat, maxLng, maxLat float64) []geom.Coord {
	return []geom.Coord{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	}
}

// mustMultiPolygon builds a MultiPolygon from one or more polygons, each
// given as an outer ring plus optional holes.
func mustMultiPolygon(polys ...[][]geom.Coord) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, rings := range polys {
		poly := geom.NewPolygon(geom.XY)
		for _, ring := range rings {
			flat := make([]float64, 0, len(ring)*2)
			for _, c := range ring {
				flat = append(flat, c[0], c[1])
			}
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
				panic(err)
			}
		}
		if err := mp.Push(poly); err != nil {
			panic(err)
		}
	}
	return mp
}

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// fixtureSnapshot mirrors the production coverage area around Hampstead: one
// grade II* building and the Hampstead Village conservation area with an
// Article 4 Direction.
func fixtureBuildings() []model.ListedBuilding {
	return []model.ListedBuilding{
		{
			ListEntry: "1113344",
			Name:      "Burgh House",
			Grade:     model.GradeIIStar,
			Latitude:  51.5575,
			Longitude: -0.1780,
			Borough:   "Camden",
		},
		{
			ListEntry: "1067240",
			Name:      "Fenton House",
			Grade:     model.GradeI,
			Latitude:  51.5609,
			Longitude: -0.1787,
			Borough:   "Camden",
		},
	}
}

func fixtureAreas() []model.ConservationArea {
	return []model.ConservationArea{
		{
			ID:              1,
			Name:            "Hampstead Village",
			Borough:         "Camden",
			HasArticle4:     true,
			Article4Details: "Withdrawal of permitted development rights for front elevations",
			DesignationDate: datePtr(1968, 4, 1),
			Boundary: mustMultiPolygon(
				[][]geom.Coord{rect(-0.1860, 51.5540, -0.1700, 51.5660)},
			),
		},
		{
			ID:              2,
			Name:            "Fitzjohns/Netherhall",
			Borough:         "Camden",
			HasArticle4:     false,
			DesignationDate: datePtr(1984, 10, 1),
			Boundary: mustMultiPolygon(
				[][]geom.Coord{rect(-0.1820, 51.5460, -0.1700, 51.5545)},
			),
		},
	}
}

// overlappingAreas covers the same ground twice, once with an Article 4
// Direction and once without.
func overlappingAreas() []model.ConservationArea {
	return []model.ConservationArea{
		{
			ID:       20,
			Name:     "Without Article 4",
			Boundary: mustMultiPolygon([][]geom.Coord{rect(-0.1900, 51.5550, -0.1700, 51.5650)}),
		},
		{
			ID:          21,
			Name:        "With Article 4",
			HasArticle4: true,
			Boundary:    mustMultiPolygon([][]geom.Coord{rect(-0.1850, 51.5560, -0.1750, 51.5640)}),
		},
	}
}

func loadedStore() *Store {
	s := NewStore()
	s.Load(fixtureBuildings(), fixtureAreas(), 50)
	return s
}
