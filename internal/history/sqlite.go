package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/heritage-watch/heritage-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "history: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "history: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	id              TEXT PRIMARY KEY,
	correlation_id  TEXT NOT NULL,
	status          TEXT NOT NULL,
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	address         TEXT,
	postcode        TEXT,
	list_entry      TEXT,
	building_name   TEXT,
	distance_meters REAL,
	area_id         INTEGER,
	area_name       TEXT,
	has_article_4   INTEGER NOT NULL DEFAULT 0,
	resolved_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_status ON resolutions(status);
CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at ON resolutions(resolved_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_correlation_id ON resolutions(correlation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "history: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordResolution(ctx context.Context, res *model.Resolution) error {
	rec := fromResolution(uuid.New().String(), res)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (
			id, correlation_id, status, latitude, longitude, address, postcode,
			list_entry, building_name, distance_meters, area_id, area_name,
			has_article_4, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CorrelationID, string(rec.Status), rec.Latitude, rec.Longitude,
		nullString(rec.Address), nullString(rec.Postcode),
		nullString(rec.ListEntry), nullString(rec.BuildingName), rec.DistanceMeters,
		rec.AreaID, nullString(rec.AreaName), rec.HasArticle4, rec.ResolvedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "history: sqlite insert %s", rec.CorrelationID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, correlation_id, status, latitude, longitude, address, postcode,
		        list_entry, building_name, distance_meters, area_id, area_name,
		        has_article_4, resolved_at
		 FROM resolutions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "history: sqlite get %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, correlation_id, status, latitude, longitude, address, postcode,
	                 list_entry, building_name, distance_meters, area_id, area_name,
	                 has_article_4, resolved_at
	          FROM resolutions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += ` AND resolved_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY resolved_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "history: sqlite list")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "history: sqlite scan")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "history: sqlite list iterate")
}

func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolutions WHERE resolved_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "history: sqlite prune")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "history: sqlite prune rows affected")
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var address, postcode, listEntry, buildingName, areaName sql.NullString
	var status string

	err := row.Scan(
		&rec.ID, &rec.CorrelationID, &status, &rec.Latitude, &rec.Longitude,
		&address, &postcode, &listEntry, &buildingName, &rec.DistanceMeters,
		&rec.AreaID, &areaName, &rec.HasArticle4, &rec.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = model.Status(status)
	rec.Address = address.String
	rec.Postcode = postcode.String
	rec.ListEntry = listEntry.String
	rec.BuildingName = buildingName.String
	rec.AreaName = areaName.String
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
