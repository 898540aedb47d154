package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS consultations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	module_id   INTEGER NOT NULL DEFAULT 0,
	query_text  TEXT NOT NULL,
	cost_cents  INTEGER NOT NULL DEFAULT 0,
	status      TEXT,
	result_data TEXT,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_consultations_user_created ON consultations(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_consultations_created ON consultations(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsert = `INSERT INTO consultations
	(id, user_id, module_id, query_text, cost_cents, status, result_data, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqliteSelect = `SELECT id, user_id, module_id, query_text, cost_cents,
	COALESCE(status, ''), result_data, metadata, created_at FROM consultations`

func (s *SQLiteStore) CreateConsultation(ctx context.Context, rec *model.ConsultationRecord) error {
	prepareRecord(rec)
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsert, sqliteArgs(r)...); err != nil {
		return eris.Wrapf(err, "sqlite: insert consultation %s", rec.ID)
	}
	return nil
}

func (s *SQLiteStore) GetConsultation(ctx context.Context, id string) (*model.ConsultationRecord, error) {
	rec, err := scanSQLite(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get consultation %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListConsultations(ctx context.Context, filter ListFilter) ([]model.ConsultationRecord, error) {
	query := sqliteSelect + ` WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list consultations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ConsultationRecord
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list consultations")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list consultations iterate")
}

func (s *SQLiteStore) ImportConsultations(ctx context.Context, recs []model.ConsultationRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO consultations
		(id, user_id, module_id, query_text, cost_cents, status, result_data, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close() //nolint:errcheck

	inserted := 0
	for i := range recs {
		prepareRecord(&recs[i])
		r, err := toRow(&recs[i])
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, sqliteArgs(r)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import consultation %s", r.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return inserted, nil
}

// helpers

func sqliteArgs(r row) []any {
	var status, result any
	if r.Status != "" {
		status = r.Status
	}
	if r.ResultData != nil {
		result = string(r.ResultData)
	}
	return []any{
		r.ID, r.UserID, r.ModuleID, r.QueryText, r.CostCents,
		status, result, string(r.Metadata), r.CreatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scannable) (*model.ConsultationRecord, error) {
	var r row
	var result sql.NullString
	var meta string
	if err := sc.Scan(&r.ID, &r.UserID, &r.ModuleID, &r.QueryText, &r.CostCents,
		&r.Status, &result, &meta, &r.CreatedAt); err != nil {
		return nil, err
	}
	if result.Valid {
		r.ResultData = []byte(result.String)
	}
	r.Metadata = []byte(meta)
	return r.record()
}
