package model

import (
	"fmt"
	"time"
)

// QueryKind distinguishes a free-text name search from a report link pasted
// by the user.
type QueryKind string

const (
	QueryName       QueryKind = "name"
	QueryManualLink QueryKind = "manual_link"
)

// SearchQuery is a validated search input. Exactly one of Text or URL is set,
// matching Kind.
type SearchQuery struct {
	Kind QueryKind `json:"kind"`
	Text string    `json:"text,omitempty"`
	URL  string    `json:"url,omitempty"`
}

// Display returns the text the user typed for history listings.
func (q SearchQuery) Display() string {
	if q.Kind == QueryManualLink {
		return q.URL
	}
	return q.Text
}

// Missing is rendered in place of absent person fields.
const Missing = "-"

// PersonRecord is one person returned by the lookup provider or parsed from a
// report table. Only Name is normally present on every row.
type PersonRecord struct {
	Name       string `json:"nome"`
	DocumentID string `json:"cpf,omitempty"`
	BirthDate  string `json:"nascimento,omitempty"`
	Age        string `json:"idade,omitempty"`
	Sex        string `json:"sexo,omitempty"`
	Addresses  string `json:"enderecos,omitempty"`
	Cities     string `json:"cidades,omitempty"`
}

// Field returns v, or Missing when v is blank.
func Field(v string) string {
	if v == "" {
		return Missing
	}
	return v
}

// LookupOutcome is the result of one lookup, possibly enriched by the
// report-link fallback.
type LookupOutcome struct {
	Records    []PersonRecord `json:"resultados"`
	ReportLink string         `json:"link,omitempty"`
	TotalFound int            `json:"total_encontrados"`
	Log        []string       `json:"log,omitempty"`
}

// AddLog appends a line to the outcome log.
func (o *LookupOutcome) AddLog(line string) {
	o.Log = append(o.Log, line)
}

// Reconcile makes TotalFound agree with the records actually held. Before
// this runs the provider's own count is authoritative.
func (o *LookupOutcome) Reconcile() {
	if o.TotalFound != len(o.Records) {
		o.AddLog(fmt.Sprintf("total adjusted from provider count %d to %d records", o.TotalFound, len(o.Records)))
		o.TotalFound = len(o.Records)
	}
}

// PriceQuote is the charge for one search.
type PriceQuote struct {
	BasePrice       Money   `json:"base_price"`
	DiscountPercent float64 `json:"discount_percent"`
	FinalPrice      Money   `json:"final_price"`
}

// BalanceState holds the two credit pools.
type BalanceState struct {
	PlanCredit   Money `json:"plan_credit"`
	WalletCredit Money `json:"wallet_credit"`
}

// Total returns plan plus wallet credit.
func (b BalanceState) Total() Money {
	return b.PlanCredit + b.WalletCredit
}

// Pool names which balance pool(s) a charge drew from.
type Pool string

const (
	PoolPlanOnly   Pool = "plan"
	PoolMixed      Pool = "mixed"
	PoolWalletOnly Pool = "wallet"
)

// ChargeDecision records how a price was split between pools.
type ChargeDecision struct {
	Pool       Pool  `json:"pool"`
	FromPlan   Money `json:"from_plan"`
	FromWallet Money `json:"from_wallet"`
}

// ConsultationStatus is the persisted outcome of an attempt.
type ConsultationStatus string

const (
	StatusCompleted  ConsultationStatus = "completed"
	StatusNotFound   ConsultationStatus = "not_found"
	StatusFailed     ConsultationStatus = "failed"
	StatusProcessing ConsultationStatus = "processing"
)

// StatusFor derives the record status from the reconciled result count.
func StatusFor(totalFound int) ConsultationStatus {
	if totalFound > 0 {
		return StatusCompleted
	}
	return StatusNotFound
}

// ConsultationMetadata is the pricing and routing context stored with a
// record.
type ConsultationMetadata struct {
	Discount      float64 `json:"discount"`
	BasePrice     Money   `json:"base_price"`
	FinalPrice    Money   `json:"final_price"`
	PoolUsed      Pool    `json:"pool_used,omitempty"`
	ReportLink    string  `json:"report_link,omitempty"`
	TotalFound    int     `json:"total_found"`
	SourceFeature string  `json:"source_feature,omitempty"`
	RouteKey      string  `json:"route_key,omitempty"`
}

// ConsultationRecord is an immutable history entry for one attempt. Outcome
// is nil for legacy records written before result data was stored.
type ConsultationRecord struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	ModuleID  int                  `json:"module_id,omitempty"`
	QueryText string               `json:"query_text"`
	Cost      Money                `json:"cost"`
	Status    ConsultationStatus   `json:"status,omitempty"`
	Outcome   *LookupOutcome       `json:"result_data,omitempty"`
	Metadata  ConsultationMetadata `json:"metadata"`
	CreatedAt time.Time            `json:"created_at"`
}

// StatsSummary aggregates a set of history records.
type StatsSummary struct {
	Total      int   `json:"total"`
	Completed  int   `json:"completed"`
	NotFound   int   `json:"not_found"`
	Failed     int   `json:"failed"`
	Processing int   `json:"processing"`
	Today      int   `json:"today"`
	ThisMonth  int   `json:"this_month"`
	TotalCost  Money `json:"total_cost"`
}
