package model

import "time"

// Status is the tri-state heritage classification.
type Status string

const (
	// StatusRed means the property is a Listed Building.
	StatusRed Status = "RED"
	// StatusAmber means the property sits inside a Conservation Area.
	StatusAmber Status = "AMBER"
	// StatusGreen means standard planning rules apply.
	StatusGreen Status = "GREEN"
)

// Query is a resolution request. Address and Postcode are diagnostic
// annotations only and never participate in matching.
type Query struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Postcode  string  `json:"postcode,omitempty"`
}

// BuildingMatch is a listed-building hit with its great-circle distance.
type BuildingMatch struct {
	Building       *ListedBuilding `json:"building"`
	DistanceMeters float64         `json:"distance_meters"`
}

// Resolution is the outcome of a heritage status check.
//
// Field presence follows the status: Building is set iff status is RED,
// Area / HasArticle4 / Article4Details are set iff status is AMBER. Use the
// NewRed/NewAmber/NewGreen constructors so the invariants hold by
// construction.
type Resolution struct {
	Status          Status            `json:"status"`
	Building        *ListedBuilding   `json:"listed_building,omitempty"`
	DistanceMeters  float64           `json:"distance_meters,omitempty"`
	Area            *ConservationArea `json:"conservation_area,omitempty"`
	HasArticle4     bool              `json:"has_article_4"`
	Article4Details string            `json:"article_4_details,omitempty"`
	Latitude        float64           `json:"latitude"`
	Longitude       float64           `json:"longitude"`
	Address         string            `json:"address,omitempty"`
	Postcode        string            `json:"postcode,omitempty"`
	ResolvedAt      time.Time         `json:"resolved_at"`
	CorrelationID   string            `json:"correlation_id"`
}

// NewRed builds a RED resolution. Conservation-area fields stay empty:
// listed-building controls supersede conservation-area controls, so any
// containing area is suppressed from the output.
func NewRed(q Query, m BuildingMatch, correlationID string, now time.Time) *Resolution {
	return &Resolution{
		Status:         StatusRed,
		Building:       m.Building,
		DistanceMeters: m.DistanceMeters,
		Latitude:       q.Latitude,
		Longitude:      q.Longitude,
		Address:        q.Address,
		Postcode:       q.Postcode,
		ResolvedAt:     now,
		CorrelationID:  correlationID,
	}
}

// NewAmber builds an AMBER resolution carrying the selected conservation
// area and its Article 4 detail.
func NewAmber(q Query, area *ConservationArea, correlationID string, now time.Time) *Resolution {
	return &Resolution{
		Status:          StatusAmber,
		Area:            area,
		HasArticle4:     area.HasArticle4,
		Article4Details: area.Article4Details,
		Latitude:        q.Latitude,
		Longitude:       q.Longitude,
		Address:         q.Address,
		Postcode:        q.Postcode,
		ResolvedAt:      now,
		CorrelationID:   correlationID,
	}
}

// NewGreen builds a GREEN resolution: neither matcher produced a hit.
func NewGreen(q Query, correlationID string, now time.Time) *Resolution {
	return &Resolution{
		Status:        StatusGreen,
		Latitude:      q.Latitude,
		Longitude:     q.Longitude,
		Address:       q.Address,
		Postcode:      q.Postcode,
		ResolvedAt:    now,
		CorrelationID: correlationID,
	}
}
