package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// ErrNotFound is returned by GetConsultation for unknown ids.
var ErrNotFound = eris.New("store: consultation not found")

// ListFilter specifies criteria for listing consultations. An empty UserID
// lists every user's records.
type ListFilter struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// DefaultListLimit applies when ListFilter.Limit is zero.
const DefaultListLimit = 100

// Store persists consultation history. Records are insert-only.
type Store interface {
	// CreateConsultation inserts rec, assigning ID and CreatedAt when unset.
	CreateConsultation(ctx context.Context, rec *model.ConsultationRecord) error
	GetConsultation(ctx context.Context, id string) (*model.ConsultationRecord, error)
	// ListConsultations returns records newest first.
	ListConsultations(ctx context.Context, filter ListFilter) ([]model.ConsultationRecord, error)
	// ImportConsultations bulk-inserts legacy records, skipping ids that
	// already exist. It returns the number inserted.
	ImportConsultations(ctx context.Context, recs []model.ConsultationRecord) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareRecord fills the generated fields of a new record.
func prepareRecord(rec *model.ConsultationRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

// row is the column form of a record shared by both backends.
type row struct {
	ID         string
	UserID     string
	ModuleID   int
	QueryText  string
	CostCents  int64
	Status     string
	ResultData []byte
	Metadata   []byte
	CreatedAt  time.Time
}

var columns = []string{
	"id", "user_id", "module_id", "query_text", "cost_cents",
	"status", "result_data", "metadata", "created_at",
}

func toRow(rec *model.ConsultationRecord) (row, error) {
	r := row{
		ID:        rec.ID,
		UserID:    rec.UserID,
		ModuleID:  rec.ModuleID,
		QueryText: rec.QueryText,
		CostCents: int64(rec.Cost),
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	}
	if rec.Outcome != nil {
		data, err := json.Marshal(rec.Outcome)
		if err != nil {
			return row{}, eris.Wrap(err, "store: marshal result data")
		}
		r.ResultData = data
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return row{}, eris.Wrap(err, "store: marshal metadata")
	}
	r.Metadata = meta
	return r, nil
}

func (r row) record() (*model.ConsultationRecord, error) {
	rec := &model.ConsultationRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		ModuleID:  r.ModuleID,
		QueryText: r.QueryText,
		Cost:      model.Money(r.CostCents),
		Status:    model.ConsultationStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
	if len(r.ResultData) > 0 {
		rec.Outcome = &model.LookupOutcome{}
		if err := json.Unmarshal(r.ResultData, rec.Outcome); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal result data for %s", r.ID)
		}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal metadata for %s", r.ID)
		}
	}
	return rec, nil
}

func limitOf(f ListFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
