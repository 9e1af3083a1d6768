// Package model defines the heritage domain records and resolution results.
package model

import (
	"strings"
	"time"
)

// Grade is a statutory listing grade, ordered by significance.
type Grade string

const (
	GradeI       Grade = "I"
	GradeIIStar  Grade = "II*"
	GradeII      Grade = "II"
	GradeUnknown Grade = ""
)

// gradeAliases maps raw dataset values to canonical grades. Source datasets
// use both roman and arabic forms.
var gradeAliases = map[string]Grade{
	"I":   GradeI,
	"1":   GradeI,
	"II*": GradeIIStar,
	"2*":  GradeIIStar,
	"II":  GradeII,
	"2":   GradeII,
}

// NormalizeGrade maps a raw grade string to a canonical Grade. Unrecognized
// values default to Grade II, the most common listing.
func NormalizeGrade(raw string) Grade {
	if g, ok := gradeAliases[strings.TrimSpace(raw)]; ok {
		return g
	}
	if strings.TrimSpace(raw) == "" {
		return GradeII
	}
	return GradeII
}

// Rank returns the statutory significance order (lower is more significant).
func (g Grade) Rank() int {
	switch g {
	case GradeI:
		return 0
	case GradeIIStar:
		return 1
	default:
		return 2
	}
}

// ListedBuilding is a point record from the statutory heritage register.
// Records are created only by dataset refresh and are read-only to the engine.
type ListedBuilding struct {
	ListEntry string     `json:"list_entry_number"`
	Name      string     `json:"name"`
	Grade     Grade      `json:"grade"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Borough   string     `json:"borough,omitempty"`
	Postcode  string     `json:"postcode,omitempty"`
	Address   string     `json:"address,omitempty"`
	ListDate  *time.Time `json:"list_date,omitempty"`
	URL       string     `json:"documentation_url,omitempty"`
}
