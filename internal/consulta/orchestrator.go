// Package consulta runs a paid name search end to end: validation, pricing,
// affordability, provider dispatch, report-link fallback, charging, history
// recording and balance reconciliation.
package consulta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artepuradesign/apipainellovable/internal/extract"
	"github.com/artepuradesign/apipainellovable/internal/fetcher"
	"github.com/artepuradesign/apipainellovable/internal/ledger"
	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/pricing"
	"github.com/artepuradesign/apipainellovable/internal/resilience"
	"github.com/artepuradesign/apipainellovable/internal/validate"
	"github.com/artepuradesign/apipainellovable/pkg/lookup"
	"github.com/artepuradesign/apipainellovable/pkg/painel"
)

const (
	defaultFallbackTimeout = 45 * time.Second
	defaultWriteTimeout    = 15 * time.Second
)

// Recorder persists history records. store.Store satisfies it.
type Recorder interface {
	CreateConsultation(ctx context.Context, rec *model.ConsultationRecord) error
}

// Config identifies the feature and bounds its side effects.
type Config struct {
	ModuleID      int
	RouteKey      string
	SourceFeature string
	// RouteTable prices the route when the module has no price.
	RouteTable pricing.RouteTable
	// FallbackTimeout bounds the report-link fetch.
	FallbackTimeout time.Duration
	// WriteTimeout bounds the detached history write.
	WriteTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Breaker is optional.
type Deps struct {
	Validator *validate.Validator
	Provider  lookup.Client
	Painel    painel.Client
	Fetcher   fetcher.Fetcher
	Recorder  Recorder
	Breaker   *resilience.Breaker
}

// Identity is the caller of a search.
type Identity struct {
	UserID string
	Token  string
}

// Request is one user-initiated search.
type Request struct {
	Raw      string
	Identity Identity
	// Balance is the caller's known balance. Nil loads it from the balance
	// service.
	Balance *model.BalanceState
	// Quote is a price already resolved by the caller (for example when the
	// page loaded the module). Nil resolves it from the module and
	// subscription services.
	Quote *model.PriceQuote
	// Observer receives progress. Optional.
	Observer Observer
}

// Result is the terminal outcome of a Run or a Replay.
type Result struct {
	State   State                    `json:"state"`
	Message string                   `json:"message,omitempty"`
	Query   model.SearchQuery        `json:"query"`
	Outcome *model.LookupOutcome     `json:"outcome,omitempty"`
	Quote   model.PriceQuote         `json:"quote"`
	Charge  model.ChargeDecision     `json:"charge"`
	Status  model.ConsultationStatus `json:"status,omitempty"`
	// RecordID is the history id written (or replayed).
	RecordID string `json:"record_id,omitempty"`
	// Balance is the latest known balance: authoritative when
	// BalanceProvisional is false, the local projection otherwise.
	Balance            model.BalanceState `json:"balance"`
	BalanceProvisional bool               `json:"balance_provisional"`
	Replayed           bool               `json:"replayed,omitempty"`
}

// Orchestrator runs searches. It is not reentrant: a Run issued while
// another is in progress fails with ErrBusy.
type Orchestrator struct {
	cfg  Config
	deps Deps

	running atomic.Bool
	writes  sync.WaitGroup

	nowFunc func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Provider == nil || deps.Painel == nil || deps.Fetcher == nil || deps.Recorder == nil {
		return nil, eris.New("consulta: provider, painel, fetcher and recorder are required")
	}
	if deps.Validator == nil {
		deps.Validator = &validate.Validator{}
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = defaultFallbackTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Orchestrator{cfg: cfg, deps: deps, nowFunc: time.Now}, nil
}

// Wait blocks until every pending history write has finished.
func (o *Orchestrator) Wait() {
	o.writes.Wait()
}

// run is the state of one search.
type run struct {
	o     *Orchestrator
	req   Request
	obs   Observer
	log   *zap.Logger
	state State
	res   *Result
}

func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		r.log.Error("consulta: illegal transition",
			zap.String("from", string(r.state)),
			zap.String("to", string(next)),
		)
	}
	prev := r.state
	r.state = next
	r.res.State = next
	r.log.Debug("consulta: transition", zap.String("from", string(prev)), zap.String("state", string(next)))
	if r.obs != nil {
		r.obs.OnTransition(prev, next)
	}
}

func (r *run) finish() {
	if r.obs != nil {
		r.obs.OnDone(r.res)
	}
}

// stop ends the run in a terminal failure state with a user-facing message.
func (r *run) stop(state State, msg string, err error) (*Result, error) {
	r.res.Message = msg
	r.to(state)
	r.finish()
	return r.res, err
}

// Run executes one search. The returned Result is never nil unless err is
// ErrBusy. Rejected and Failed results come with the typed error that
// caused them.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.running.Store(false)

	r := &run{
		o:     o,
		req:   req,
		obs:   req.Observer,
		log:   zap.L().With(zap.String("user_id", req.Identity.UserID)),
		state: StateIdle,
		res:   &Result{State: StateIdle},
	}

	r.to(StateValidating)
	if req.Identity.Token == "" {
		return r.stop(StateRejected, "session expired, sign in again", ErrNoSession)
	}
	query, err := o.deps.Validator.Validate(req.Raw)
	if err != nil {
		return r.stop(StateRejected, err.Error(), err)
	}
	r.res.Query = query
	r.log = r.log.With(zap.String("query_kind", string(query.Kind)))

	balance, quote, err := r.prepare(ctx)
	if err != nil {
		msg := "could not load balance, try again"
		if errors.Is(err, pricing.ErrNoPrice) {
			msg = "price unavailable for this search"
		}
		r.log.Warn("consulta: preparation failed", zap.Error(err))
		return r.stop(StateRejected, msg, err)
	}
	r.res.Quote = quote
	r.res.Balance = balance

	if !ledger.CanAfford(balance, quote.FinalPrice) {
		fundsErr := &InsufficientFundsError{
			Required:  quote.FinalPrice,
			Available: balance.Total(),
			Shortfall: ledger.Shortfall(balance, quote.FinalPrice),
		}
		return r.stop(StateRejected, fmt.Sprintf("insufficient balance: %s short", fundsErr.Shortfall), fundsErr)
	}

	r.to(StateDispatching)
	resp, err := r.dispatch(ctx, query)
	if errors.Is(err, resilience.ErrBreakerOpen) {
		r.log.Warn("consulta: provider circuit open")
		return r.stop(StateRejected, "lookup service is unavailable, try again shortly", &ProviderError{Err: err})
	}
	if err != nil {
		r.log.Error("consulta: provider call failed", zap.Error(err))
		return r.stop(StateFailed, "lookup failed, no charge was made", &ProviderError{Err: err})
	}
	if !resp.Success {
		r.log.Error("consulta: provider reported failure", zap.String("error", resp.Error))
		pe := &ProviderError{Reported: resp.Error}
		msg := "lookup failed, no charge was made"
		if resp.Error != "" {
			msg = "lookup failed: " + resp.Error
		}
		return r.stop(StateFailed, msg, pe)
	}

	outcome := resp.Outcome()
	if (len(outcome.Records) == 0 || outcome.TotalFound == 0) && outcome.ReportLink != "" {
		r.to(StateFetchingFallback)
		r.fallback(ctx, &outcome)
	}
	outcome.Reconcile()
	r.res.Outcome = &outcome
	r.res.Status = model.StatusFor(outcome.TotalFound)

	r.to(StateRecording)
	book := r.record(ctx, balance, quote, query, outcome)

	r.to(StateReconciling)
	r.reconcile(ctx, book)
	r.res.Balance = book.Current()
	r.res.BalanceProvisional = book.IsProvisional()

	r.to(StateDone)
	r.finish()
	return r.res, nil
}

// Preview is a priced search that was not dispatched.
type Preview struct {
	Query      model.SearchQuery  `json:"query"`
	Quote      model.PriceQuote   `json:"quote"`
	Balance    model.BalanceState `json:"balance"`
	Affordable bool               `json:"affordable"`
	Shortfall  model.Money        `json:"shortfall"`
}

// Preview validates and prices req without dispatching or charging. It may
// run alongside Run.
func (o *Orchestrator) Preview(ctx context.Context, req Request) (*Preview, error) {
	if req.Identity.Token == "" {
		return nil, ErrNoSession
	}
	query, err := o.deps.Validator.Validate(req.Raw)
	if err != nil {
		return nil, err
	}

	r := &run{o: o, req: req, log: zap.L().With(zap.String("user_id", req.Identity.UserID))}
	balance, quote, err := r.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Query:      query,
		Quote:      quote,
		Balance:    balance,
		Affordable: ledger.CanAfford(balance, quote.FinalPrice),
		Shortfall:  ledger.Shortfall(balance, quote.FinalPrice),
	}, nil
}

// prepare loads whatever the request did not supply: the balance, and the
// module price plus subscription needed for the quote. Loads run
// concurrently. Only a balance or price failure is fatal; a missing
// subscription or discount answer means no discount.
func (r *run) prepare(ctx context.Context) (model.BalanceState, model.PriceQuote, error) {
	o := r.o
	token := r.req.Identity.Token

	var (
		balance     model.BalanceState
		modulePrice model.Money
		sub         painel.Subscription
	)
	if r.req.Balance != nil {
		balance = *r.req.Balance
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.req.Balance == nil {
		g.Go(func() error {
			b, err := o.deps.Painel.GetBalance(gctx, token)
			if err != nil {
				return eris.Wrap(err, "consulta: load balance")
			}
			balance = b
			return nil
		})
	}
	if r.req.Quote == nil {
		g.Go(func() error {
			m, err := o.deps.Painel.GetModule(gctx, token, o.cfg.ModuleID)
			if err != nil {
				r.log.Warn("consulta: module price unavailable, using route table",
					zap.Int("module_id", o.cfg.ModuleID), zap.Error(err))
				return nil
			}
			modulePrice = m.Price
			return nil
		})
		g.Go(func() error {
			s, err := o.deps.Painel.GetSubscription(gctx, token)
			if err != nil {
				r.log.Warn("consulta: subscription unavailable, no discount", zap.Error(err))
				return nil
			}
			sub = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.BalanceState{}, model.PriceQuote{}, err
	}

	if r.req.Quote != nil {
		return balance, *r.req.Quote, nil
	}

	base, err := pricing.ResolveBase(modulePrice, o.cfg.RouteKey, o.cfg.RouteTable)
	if err != nil {
		return model.BalanceState{}, model.PriceQuote{}, err
	}

	discount := func(price model.Money) (model.Money, bool) {
		d, err := o.deps.Painel.CalculateDiscount(ctx, token, price)
		if err != nil {
			r.log.Warn("consulta: discount service failed, charging full price", zap.Error(err))
			return price, false
		}
		return d.FinalPrice, d.DiscountApplied
	}
	return balance, pricing.Quote(base, sub.Active, sub.DiscountPercent, discount), nil
}

func (r *run) dispatch(ctx context.Context, q model.SearchQuery) (*lookup.Response, error) {
	req := lookup.Request{Token: r.req.Identity.Token}
	if q.Kind == model.QueryManualLink {
		req.ManualLink = q.URL
	} else {
		req.Name = q.Text
	}

	call := func(ctx context.Context) (*lookup.Response, error) {
		return r.o.deps.Provider.SearchByName(ctx, req)
	}
	if r.o.deps.Breaker == nil {
		return call(ctx)
	}
	return resilience.Call(ctx, r.o.deps.Breaker, call)
}

// fallback fetches and parses the report link. Failures only add a warning
// line; the provider's outcome stands.
func (r *run) fallback(ctx context.Context, outcome *model.LookupOutcome) {
	fctx, cancel := context.WithTimeout(ctx, r.o.cfg.FallbackTimeout)
	defer cancel()

	body, err := r.o.deps.Fetcher.FetchReport(fctx, outcome.ReportLink)
	if err != nil {
		r.log.Warn("consulta: report fetch failed", zap.String("link", outcome.ReportLink), zap.Error(err))
		outcome.AddLog("warning: could not load the report link, open it manually: " + err.Error())
		return
	}

	records := extract.Extract(body)
	if len(records) == 0 {
		r.log.Warn("consulta: report link had no records", zap.String("link", outcome.ReportLink))
		outcome.AddLog("warning: report link returned no records, open it manually")
		return
	}

	outcome.Records = records
	outcome.TotalFound = len(records)
	outcome.AddLog(fmt.Sprintf("report link parsed: %d records extracted", len(records)))
}

// record projects the charge and writes the history record in the
// background.
func (r *run) record(ctx context.Context, balance model.BalanceState, quote model.PriceQuote,
	query model.SearchQuery, outcome model.LookupOutcome) *ledger.Book {
	book := ledger.NewBook(balance)

	decision, projected, err := ledger.Charge(balance, quote.FinalPrice)
	if err != nil {
		// Affordability was checked before dispatch with the same inputs.
		r.log.Error("consulta: charge projection failed", zap.Error(err))
	} else {
		book.Project(projected)
	}
	r.res.Charge = decision

	rec := model.ConsultationRecord{
		ID:        uuid.New().String(),
		UserID:    r.req.Identity.UserID,
		ModuleID:  r.o.cfg.ModuleID,
		QueryText: query.Display(),
		Cost:      quote.FinalPrice,
		Status:    model.StatusFor(outcome.TotalFound),
		Outcome:   &outcome,
		Metadata: model.ConsultationMetadata{
			Discount:      quote.DiscountPercent,
			BasePrice:     quote.BasePrice,
			FinalPrice:    quote.FinalPrice,
			PoolUsed:      decision.Pool,
			ReportLink:    outcome.ReportLink,
			TotalFound:    outcome.TotalFound,
			SourceFeature: r.o.cfg.SourceFeature,
			RouteKey:      r.o.cfg.RouteKey,
		},
		CreatedAt: r.o.nowFunc(),
	}
	r.res.RecordID = rec.ID
	r.o.persist(ctx, rec, r.log)
	return book
}

// persist writes rec on a detached goroutine. The write outlives the caller's
// context; errors are logged and never reach the user.
func (o *Orchestrator) persist(ctx context.Context, rec model.ConsultationRecord, log *zap.Logger) {
	o.writes.Add(1)
	go func() {
		defer o.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.WriteTimeout)
		defer cancel()

		if err := o.deps.Recorder.CreateConsultation(wctx, &rec); err != nil {
			log.Warn("consulta: history write failed", zap.String("record_id", rec.ID), zap.Error(err))
			return
		}
		log.Debug("consulta: history written", zap.String("record_id", rec.ID))
	}()
}

// reconcile reloads the authoritative balance. On failure the projection
// stays and the result is flagged provisional.
func (r *run) reconcile(ctx context.Context, book *ledger.Book) {
	state, err := r.o.deps.Painel.GetBalance(ctx, r.req.Identity.Token)
	if err != nil {
		r.log.Warn("consulta: balance reload failed, keeping projection", zap.Error(err))
		return
	}
	book.Reconcile(state)
}

// Replay rebuilds the result of a stored record. It performs no I/O and no
// charge. Records written before result data was stored replay from their
// metadata: link and count, no rows.
func Replay(rec *model.ConsultationRecord) (*Result, error) {
	if rec == nil {
		return nil, eris.New("consulta: replay of nil record")
	}

	var outcome model.LookupOutcome
	if rec.Outcome != nil {
		outcome = *rec.Outcome
		outcome.Records = append([]model.PersonRecord{}, rec.Outcome.Records...)
		outcome.Log = append([]string(nil), rec.Outcome.Log...)
	} else {
		outcome = model.LookupOutcome{
			Records:    []model.PersonRecord{},
			ReportLink: rec.Metadata.ReportLink,
			TotalFound: rec.Metadata.TotalFound,
		}
	}

	status := rec.Status
	if status == "" {
		status = model.StatusCompleted
	}

	query := model.SearchQuery{Kind: model.QueryName, Text: rec.QueryText}
	if strings.HasPrefix(rec.QueryText, "http://") || strings.HasPrefix(rec.QueryText, "https://") {
		query = model.SearchQuery{Kind: model.QueryManualLink, URL: rec.QueryText}
	}

	return &Result{
		State:   StateDone,
		Query:   query,
		Outcome: &outcome,
		Quote: model.PriceQuote{
			BasePrice:       rec.Metadata.BasePrice,
			DiscountPercent: rec.Metadata.Discount,
			FinalPrice:      rec.Metadata.FinalPrice,
		},
		Charge:   model.ChargeDecision{Pool: rec.Metadata.PoolUsed},
		Status:   status,
		RecordID: rec.ID,
		Replayed: true,
	}, nil
}
