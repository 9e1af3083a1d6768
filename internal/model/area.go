package model

import (
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// boroughAliases normalizes local-authority names as they appear in boundary
// datasets to the short borough names used across the engine.
var boroughAliases = map[string]string{
	"LB Camden":           "Camden",
	"LB Barnet":           "Barnet",
	"LB Haringey":         "Haringey",
	"LB Brent":            "Brent",
	"LB Islington":        "Islington",
	"City of Westminster": "Westminster",
}

// NormalizeBorough maps a raw local-authority name to its canonical borough name.
func NormalizeBorough(raw string) string {
	raw = strings.TrimSpace(raw)
	if b, ok := boroughAliases[raw]; ok {
		return b
	}
	return raw
}

// ConservationArea is a designated area with a polygon or multi-polygon
// boundary. Boundaries may legitimately overlap with other areas.
type ConservationArea struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Borough         string     `json:"borough,omitempty"`
	HasArticle4     bool       `json:"has_article_4"`
	Article4Details string     `json:"article_4_details,omitempty"`
	DesignationDate *time.Time `json:"designation_date,omitempty"`

	// Boundary holds the area geometry, WGS84 lng/lat order. May contain
	// holes and disjoint parts.
	Boundary *geom.MultiPolygon `json:"-"`
}

// Bounds returns the boundary's bounding box, or nil if no boundary is set.
func (a *ConservationArea) Bounds() *geom.Bounds {
	if a.Boundary == nil {
		return nil
	}
	return a.Boundary.Bounds()
}

// DesignatedAfter reports whether a was designated more recently than b.
// Areas without a designation date sort as oldest.
func (a *ConservationArea) DesignatedAfter(b *ConservationArea) bool {
	at, bt := time.Time{}, time.Time{}
	if a.DesignationDate != nil {
		at = *a.DesignationDate
	}
	if b.DesignationDate != nil {
		bt = *b.DesignationDate
	}
	return at.After(bt)
}
