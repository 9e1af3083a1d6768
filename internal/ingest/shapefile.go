package ingest

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Attribute name candidates across borough boundary exports. Shapefile DBF
// field names are truncated to ten characters.
var (
	shpNameFields    = []string{"ca_name", "name", "conarea"}
	shpBoroughFields = []string{"borough", "lpa", "local_auth", "lb_name"}
	shpRefFields     = []string{"ca_ref", "reference", "ref", "id"}
	shpDateFields    = []string{"desig_date", "date_desig", "designated"}
	shpA4Fields      = []string{"article_4", "article4", "a4_status"}
	shpA4Detail      = []string{"a4_restric", "a4_details"}
)

// LoadConservationAreasShapefile reads conservation area polygons from a
// shapefile. Coordinates must already be WGS84 lng/lat.
func LoadConservationAreasShapefile(path string, opts Options) ([]model.ConservationArea, Stats, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(candidates []string) string {
		for _, c := range candidates {
			idx, ok := fieldIdx[c]
			if !ok {
				continue
			}
			val := strings.TrimRight(reader.Attribute(idx), "\x00")
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
		return ""
	}

	var stats Stats
	var areas []model.ConservationArea
	nextID := int64(1)

	for reader.Next() {
		stats.Total++
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			stats.Skipped++
			continue
		}

		boundary := polygonToMultiPolygon(poly)
		if boundary == nil {
			stats.Skipped++
			continue
		}

		borough := model.NormalizeBorough(attr(shpBoroughFields))
		if !isTargetBorough(borough) {
			stats.Skipped++
			continue
		}
		if opts.Borough != "" && !strings.EqualFold(borough, opts.Borough) {
			stats.Skipped++
			continue
		}

		name := attr(shpNameFields)
		if name == "" {
			name = "Unknown Conservation Area"
		}

		var id int64
		if ref := attr(shpRefFields); ref != "" {
			if n, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil {
				id = n
			}
		}
		if id == 0 {
			id = nextID
		}
		if id >= nextID {
			nextID = id + 1
		}

		hasArticle4 := parseShpBool(attr(shpA4Fields))
		var details string
		if hasArticle4 {
			details = attr(shpA4Detail)
		}

		areas = append(areas, model.ConservationArea{
			ID:              id,
			Name:            name,
			Borough:         borough,
			HasArticle4:     hasArticle4,
			Article4Details: details,
			DesignationDate: parseDate(attr(shpDateFields)),
			Boundary:        boundary,
		})
		stats.Loaded++
	}

	zap.L().Info("ingest: loaded conservation areas from shapefile",
		zap.String("path", path),
		zap.Int("total", stats.Total),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
	)

	return areas, stats, nil
}

func parseShpBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "yes", "y", "t", "1":
		return true
	}
	return false
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile convention: outer rings wind clockwise, holes counter-clockwise.
// Each hole attaches to the most recent outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start+1)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 6 {
			continue
		}
		// Close the ring if the source left it open.
		if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
			flat = append(flat, flat[0], flat[1])
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) < 0 || current == nil {
			// Clockwise: a new outer ring.
			flush()
			current = geom.NewPolygon(geom.XY)
			if err := current.Push(ring); err != nil {
				zap.L().Debug("ingest: skipping malformed outer ring", zap.Int32("part", i), zap.Error(err))
				current = nil
			}
			continue
		}

		// Counter-clockwise: a hole in the current outer ring.
		if err := current.Push(ring); err != nil {
			zap.L().Debug("ingest: skipping malformed hole ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea computes the shoelace area of a flat XY ring. Positive means
// counter-clockwise winding.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n-1; i++ {
		x1, y1 := flat[2*i], flat[2*i+1]
		x2, y2 := flat[2*i+2], flat[2*i+3]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}
