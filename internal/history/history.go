// Package history persists resolved queries for audit. The engine works
// entirely in memory; this store is write-behind and never sits on the
// resolution path's critical section.
package history

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// Record is one resolved query as stored for audit.
type Record struct {
	ID             string       `json:"id"`
	CorrelationID  string       `json:"correlation_id"`
	Status         model.Status `json:"status"`
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	Address        string       `json:"address,omitempty"`
	Postcode       string       `json:"postcode,omitempty"`
	ListEntry      string       `json:"list_entry,omitempty"`
	BuildingName   string       `json:"building_name,omitempty"`
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
	AreaID         *int64       `json:"area_id,omitempty"`
	AreaName       string       `json:"area_name,omitempty"`
	HasArticle4    bool         `json:"has_article_4"`
	ResolvedAt     time.Time    `json:"resolved_at"`
}

// fromResolution flattens a resolution into its audit record.
func fromResolution(id string, res *model.Resolution) Record {
	rec := Record{
		ID:            id,
		CorrelationID: res.CorrelationID,
		Status:        res.Status,
		Latitude:      res.Latitude,
		Longitude:     res.Longitude,
		Address:       res.Address,
		Postcode:      res.Postcode,
		HasArticle4:   res.HasArticle4,
		ResolvedAt:    res.ResolvedAt,
	}
	if res.Building != nil {
		rec.ListEntry = res.Building.ListEntry
		rec.BuildingName = res.Building.Name
		d := res.DistanceMeters
		rec.DistanceMeters = &d
	}
	if res.Area != nil {
		id := res.Area.ID
		rec.AreaID = &id
		rec.AreaName = res.Area.Name
	}
	return rec
}

// Filter specifies criteria for listing audit records.
type Filter struct {
	Status model.Status `json:"status,omitempty"`
	Since  time.Time    `json:"since,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store defines the audit persistence interface. RecordResolution satisfies
// the engine's Recorder, so a Store can be attached to the service directly.
type Store interface {
	RecordResolution(ctx context.Context, res *model.Resolution) error
	List(ctx context.Context, filter Filter) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver. Driver "none" returns a
// nil Store; callers skip attaching a recorder in that case.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("history: unknown driver %q", driver)
	}
}
