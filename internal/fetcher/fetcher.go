// Package fetcher downloads the HTML reports that the lookup provider links to
// when it returns no structured records.
package fetcher

import "context"

// Fetcher downloads a report page.
type Fetcher interface {
	// FetchReport GETs rawURL and returns the decoded HTML body.
	FetchReport(ctx context.Context, rawURL string) (string, error)
}
