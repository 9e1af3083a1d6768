package history

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/heritage-watch/heritage-cli/internal/db"
	"github.com/heritage-watch/heritage-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_resolution": `INSERT INTO resolutions (
		id, correlation_id, status, latitude, longitude, address, postcode,
		list_entry, building_name, distance_meters, area_id, area_name,
		has_article_4, resolved_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
	"get_resolution": `SELECT id, correlation_id, status, latitude, longitude, address, postcode,
		list_entry, building_name, distance_meters, area_id, area_name,
		has_article_4, resolved_at
	 FROM resolutions WHERE id = $1`,
	"prune_resolutions": `DELETE FROM resolutions WHERE resolved_at < $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "history: postgres parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "history: postgres prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "history: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "history: postgres ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (tests use pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS resolutions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	correlation_id  TEXT NOT NULL,
	status          TEXT NOT NULL,
	latitude        DOUBLE PRECISION NOT NULL,
	longitude       DOUBLE PRECISION NOT NULL,
	address         TEXT,
	postcode        TEXT,
	list_entry      TEXT,
	building_name   TEXT,
	distance_meters DOUBLE PRECISION,
	area_id         BIGINT,
	area_name       TEXT,
	has_article_4   BOOLEAN NOT NULL DEFAULT false,
	resolved_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_status ON resolutions(status);
CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at ON resolutions(resolved_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_correlation_id ON resolutions(correlation_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "history: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordResolution(ctx context.Context, res *model.Resolution) error {
	rec := fromResolution(uuid.New().String(), res)

	_, err := s.pool.Exec(ctx, "insert_resolution",
		rec.ID, rec.CorrelationID, string(rec.Status), rec.Latitude, rec.Longitude,
		nullString(rec.Address), nullString(rec.Postcode),
		nullString(rec.ListEntry), nullString(rec.BuildingName), rec.DistanceMeters,
		rec.AreaID, nullString(rec.AreaName), rec.HasArticle4, rec.ResolvedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "history: postgres insert %s", rec.CorrelationID)
	}
	return nil
}

// RecordBatch bulk-inserts audit records via COPY. Used when backfilling
// from exported logs.
func (s *PostgresStore) RecordBatch(ctx context.Context, records []Record) (int64, error) {
	columns := []string{
		"id", "correlation_id", "status", "latitude", "longitude", "address",
		"postcode", "list_entry", "building_name", "distance_meters",
		"area_id", "area_name", "has_article_4", "resolved_at",
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{
			id, rec.CorrelationID, string(rec.Status), rec.Latitude, rec.Longitude,
			nullString(rec.Address), nullString(rec.Postcode),
			nullString(rec.ListEntry), nullString(rec.BuildingName), rec.DistanceMeters,
			rec.AreaID, nullString(rec.AreaName), rec.HasArticle4, rec.ResolvedAt.UTC(),
		})
	}

	return db.CopyFrom(ctx, s.pool, "resolutions", columns, rows)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, "get_resolution", id)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "history: postgres get %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, correlation_id, status, latitude, longitude, address, postcode,
	                 list_entry, building_name, distance_meters, area_id, area_name,
	                 has_article_4, resolved_at
	          FROM resolutions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND resolved_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY resolved_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "history: postgres list")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "history: postgres scan")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "history: postgres list iterate")
}

func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "prune_resolutions", cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "history: postgres prune")
	}
	return tag.RowsAffected(), nil
}

