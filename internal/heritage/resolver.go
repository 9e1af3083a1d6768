package heritage

import (
	"time"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Resolve reduces the two matcher outputs into a single resolution. Priority
// is strict and first-match-wins:
//
//  1. listed building in range  -> RED (conservation areas suppressed)
//  2. any containing area       -> AMBER with the tie-broken area attached
//  3. neither                   -> GREEN
//
// The function is pure: identical inputs always produce identical outputs,
// which the cache and regression tests rely on.
func Resolve(q model.Query, building *model.BuildingMatch, areas []*model.ConservationArea, correlationID string, now time.Time) *model.Resolution {
	if building != nil {
		return model.NewRed(q, *building, correlationID, now)
	}
	if len(areas) > 0 {
		return model.NewAmber(q, SelectArea(areas), correlationID, now)
	}
	return model.NewGreen(q, correlationID, now)
}

// SelectArea picks one area from overlapping containment matches. An area
// under an Article 4 Direction wins (more restrictive, more informative);
// then the most recently designated; then the lowest internal id. Iteration
// order never decides the outcome.
func SelectArea(areas []*model.ConservationArea) *model.ConservationArea {
	best := areas[0]
	for _, cand := range areas[1:] {
		if areaLess(cand, best) {
			best = cand
		}
	}
	return best
}

// areaLess reports whether a should be preferred over b.
func areaLess(a, b *model.ConservationArea) bool {
	if a.HasArticle4 != b.HasArticle4 {
		return a.HasArticle4
	}
	if a.DesignatedAfter(b) {
		return true
	}
	if b.DesignatedAfter(a) {
		return false
	}
	return a.ID < b.ID
}
