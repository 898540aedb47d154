// Package history loads this feature's slice of the shared consultation
// history and summarizes it.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/store"
)

// ErrOutOfScope is returned by Get for records that belong to another
// feature.
var ErrOutOfScope = eris.New("history: record belongs to another feature")

const (
	defaultPageSize = 100
	defaultMaxPages = 50
)

// Reconciler reads consultation history for one route key.
type Reconciler struct {
	store    store.Store
	routeKey string
	pageSize int
	maxPages int
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPageSize sets how many records are requested per store page.
func WithPageSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithMaxPages bounds how far back LoadRecent pages.
func WithMaxPages(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxPages = n
		}
	}
}

// WithClock overrides the clock used by Stats. Its location decides what
// "today" means.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a Reconciler. An empty routeKey keeps every record.
func NewReconciler(st store.Store, routeKey string, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    st,
		routeKey: routeKey,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InScope reports whether rec was produced by this feature.
func (r *Reconciler) InScope(rec model.ConsultationRecord) bool {
	return r.routeKey == "" || rec.Metadata.RouteKey == r.routeKey
}

// LoadRecent returns the user's n most recent in-scope records, newest first.
// n <= 0 returns every in-scope record within the paging bound.
func (r *Reconciler) LoadRecent(ctx context.Context, userID string, n int) ([]model.ConsultationRecord, error) {
	var out []model.ConsultationRecord
	for page := 0; page < r.maxPages; page++ {
		batch, err := r.store.ListConsultations(ctx, store.ListFilter{
			UserID: userID,
			Limit:  r.pageSize,
			Offset: page * r.pageSize,
		})
		if err != nil {
			return nil, eris.Wrap(err, "history: load recent")
		}
		for _, rec := range batch {
			if r.InScope(rec) {
				out = append(out, rec)
			}
		}
		if len(batch) < r.pageSize || (n > 0 && len(out) >= n) {
			break
		}
		if page == r.maxPages-1 {
			zap.L().Warn("history: paging bound reached, older records skipped",
				zap.String("user_id", userID),
				zap.Int("pages", r.maxPages),
			)
		}
	}

	SortNewestFirst(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []model.ConsultationRecord{}
	}
	return out, nil
}

// Stats summarizes every in-scope record of the user as of now.
func (r *Reconciler) Stats(ctx context.Context, userID string) (model.StatsSummary, error) {
	recs, err := r.LoadRecent(ctx, userID, 0)
	if err != nil {
		return model.StatsSummary{}, err
	}
	return ComputeStats(recs, r.now()), nil
}

// Get loads one in-scope record for replay.
func (r *Reconciler) Get(ctx context.Context, id string) (*model.ConsultationRecord, error) {
	rec, err := r.store.GetConsultation(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "history: get %s", id)
	}
	if !r.InScope(*rec) {
		return nil, ErrOutOfScope
	}
	return rec, nil
}

// SortNewestFirst orders records by timestamp, newest first. Ties keep their
// incoming order.
func SortNewestFirst(recs []model.ConsultationRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

// ComputeStats aggregates recs. Today and ThisMonth use now's location for
// calendar boundaries. A missing or unknown status counts as completed, since
// records older than the failed/not-found distinction carry none.
func ComputeStats(recs []model.ConsultationRecord, now time.Time) model.StatsSummary {
	var s model.StatsSummary
	ny, nm, nd := now.Date()
	loc := now.Location()

	for _, rec := range recs {
		s.Total++
		s.TotalCost += rec.Cost

		switch rec.Status {
		case model.StatusFailed:
			s.Failed++
		case model.StatusNotFound:
			s.NotFound++
		case model.StatusProcessing:
			s.Processing++
		default:
			s.Completed++
		}

		y, m, d := rec.CreatedAt.In(loc).Date()
		if y == ny && m == nm {
			s.ThisMonth++
			if d == nd {
				s.Today++
			}
		}
	}
	return s
}
