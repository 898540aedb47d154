package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
	"github.com/artepuradesign/apipainellovable/internal/model"
)

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatResult writes a search or replay result for a terminal.
func formatResult(out io.Writer, res *consulta.Result) {
	if res.Message != "" {
		_, _ = fmt.Fprintln(out, res.Message)
	}
	if res.Outcome == nil {
		return
	}

	if res.Replayed {
		_, _ = fmt.Fprintf(out, "Replay of %s (no charge)\n", res.RecordID)
	}
	_, _ = fmt.Fprintf(out, "Query: %s\n", res.Query.Display())
	_, _ = fmt.Fprintf(out, "Found: %d\n", res.Outcome.TotalFound)
	if res.Outcome.ReportLink != "" {
		_, _ = fmt.Fprintf(out, "Report: %s\n", res.Outcome.ReportLink)
	}

	if len(res.Outcome.Records) > 0 {
		_, _ = fmt.Fprintln(out)
		formatRecords(out, res.Outcome.Records)
	}

	for _, line := range res.Outcome.Log {
		_, _ = fmt.Fprintf(out, "  > %s\n", line)
	}

	if res.Replayed {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "Charged: %s (%s)\n", res.Quote.FinalPrice, res.Charge.Pool)
	balance := "Balance"
	if res.BalanceProvisional {
		balance = "Balance (estimated)"
	}
	_, _ = fmt.Fprintf(out, "%s: plan %s, wallet %s\n", balance, res.Balance.PlanCredit, res.Balance.WalletCredit)
}

// formatRecords writes person rows as a table. Absent fields print as "-".
func formatRecords(out io.Writer, recs []model.PersonRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCPF\tBIRTH\tAGE\tSEX\tCITIES")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			model.Field(r.Name),
			model.Field(r.DocumentID),
			model.Field(r.BirthDate),
			model.Field(r.Age),
			model.Field(r.Sex),
			model.Field(truncate(r.Cities, 40)),
		)
	}
	_ = w.Flush()
}

// formatPreview writes a dry-run quote.
func formatPreview(out io.Writer, p *consulta.Preview) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Query:\t%s (%s)\n", p.Query.Display(), p.Query.Kind)
	_, _ = fmt.Fprintf(w, "Base price:\t%s\n", p.Quote.BasePrice)
	if p.Quote.DiscountPercent > 0 {
		_, _ = fmt.Fprintf(w, "Discount:\t%.0f%%\n", p.Quote.DiscountPercent)
	}
	_, _ = fmt.Fprintf(w, "Price:\t%s\n", p.Quote.FinalPrice)
	_, _ = fmt.Fprintf(w, "Plan credit:\t%s\n", p.Balance.PlanCredit)
	_, _ = fmt.Fprintf(w, "Wallet credit:\t%s\n", p.Balance.WalletCredit)
	if p.Affordable {
		_, _ = fmt.Fprintln(w, "Affordable:\tyes")
	} else {
		_, _ = fmt.Fprintf(w, "Affordable:\tno (short %s)\n", p.Shortfall)
	}
	_ = w.Flush()
}

// formatHistory writes a tabular list of history records.
func formatHistory(out io.Writer, recs []model.ConsultationRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tSTATUS\tFOUND\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-----\t----\t-------")
	for _, r := range recs {
		status := r.Status
		if status == "" {
			status = model.StatusCompleted
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(r.ID),
			truncate(r.QueryText, 30),
			status,
			r.Metadata.TotalFound,
			r.Cost,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatStats writes aggregate history statistics.
func formatStats(out io.Writer, s model.StatsSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total searches:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Not found:\t%d\n", s.NotFound)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.Processing > 0 {
		_, _ = fmt.Fprintf(w, "Processing:\t%d\n", s.Processing)
	}
	_, _ = fmt.Fprintf(w, "Today:\t%d\n", s.Today)
	_, _ = fmt.Fprintf(w, "This month:\t%d\n", s.ThisMonth)
	_, _ = fmt.Fprintf(w, "Total spent:\t%s\n", s.TotalCost)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
