package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/db"
	"github.com/artepuradesign/apipainellovable/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS consultations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id     TEXT NOT NULL,
	module_id   INTEGER NOT NULL DEFAULT 0,
	query_text  TEXT NOT NULL,
	cost_cents  BIGINT NOT NULL DEFAULT 0,
	status      TEXT,
	result_data JSONB,
	metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_consultations_user_created ON consultations(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_consultations_created ON consultations(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_consultations_route ON consultations((metadata->>'route_key'));
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const postgresSelect = `SELECT id, user_id, module_id, query_text, cost_cents,
	COALESCE(status, ''), result_data, metadata, created_at FROM consultations`

func (s *PostgresStore) CreateConsultation(ctx context.Context, rec *model.ConsultationRecord) error {
	prepareRecord(rec)
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO consultations (id, user_id, module_id, query_text, cost_cents, status, result_data, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		postgresArgs(r)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert consultation %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) GetConsultation(ctx context.Context, id string) (*model.ConsultationRecord, error) {
	rec, err := scanPostgres(s.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get consultation %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListConsultations(ctx context.Context, filter ListFilter) ([]model.ConsultationRecord, error) {
	query := postgresSelect + ` WHERE ($1 = '' OR user_id = $1) ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, filter.UserID, limitOf(filter), max(filter.Offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list consultations")
	}
	defer rows.Close()

	var out []model.ConsultationRecord
	for rows.Next() {
		rec, err := scanPostgres(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list consultations")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list consultations iterate")
}

func (s *PostgresStore) ImportConsultations(ctx context.Context, recs []model.ConsultationRecord) (int, error) {
	rows := make([][]any, 0, len(recs))
	for i := range recs {
		prepareRecord(&recs[i])
		r, err := toRow(&recs[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, postgresArgs(r))
	}

	n, err := db.InsertMissing(ctx, s.pool, db.InsertConfig{
		Table:        "consultations",
		Columns:      columns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import consultations")
	}
	return int(n), nil
}

func postgresArgs(r row) []any {
	var status any
	if r.Status != "" {
		status = r.Status
	}
	return []any{
		r.ID, r.UserID, r.ModuleID, r.QueryText, r.CostCents,
		status, r.ResultData, r.Metadata, r.CreatedAt,
	}
}

func scanPostgres(sc pgx.Row) (*model.ConsultationRecord, error) {
	var r row
	if err := sc.Scan(&r.ID, &r.UserID, &r.ModuleID, &r.QueryText, &r.CostCents,
		&r.Status, &r.ResultData, &r.Metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	return r.record()
}
