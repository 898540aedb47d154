// Package lookup provides a client for the external name lookup provider.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/resilience"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 10 << 20

// Client defines the lookup provider operations.
type Client interface {
	// SearchByName runs one lookup. A response with Success=false is returned
	// without error; transport and status failures are errors.
	SearchByName(ctx context.Context, req Request) (*Response, error)
}

// Request is one lookup. Exactly one of Name or ManualLink is set.
type Request struct {
	Name       string
	ManualLink string
	// Token is the caller's session token, sent as a bearer credential.
	Token string
}

// Response is the provider envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    Data   `json:"data"`
	Error   string `json:"error,omitempty"`
}

// Data is the payload of a successful lookup.
type Data struct {
	Records    []model.PersonRecord `json:"resultados"`
	TotalFound int                  `json:"total_encontrados"`
	Link       string               `json:"link,omitempty"`
	Log        []string             `json:"log,omitempty"`
}

// Outcome converts the payload into a LookupOutcome. The provider's count is
// kept as-is; callers reconcile it once the fallback has run.
func (r *Response) Outcome() model.LookupOutcome {
	records := r.Data.Records
	if records == nil {
		records = []model.PersonRecord{}
	}
	return model.LookupOutcome{
		Records:    records,
		ReportLink: r.Data.Link,
		TotalFound: r.Data.TotalFound,
		Log:        append([]string(nil), r.Data.Log...),
	}
}

type searchBody struct {
	Name       string `json:"nome,omitempty"`
	ManualLink string `json:"link_manual,omitempty"`
}

// Option configures the lookup client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a lookup client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchByName(ctx context.Context, req Request) (*Response, error) {
	if (req.Name == "") == (req.ManualLink == "") {
		return nil, eris.New("lookup: exactly one of name or manual link is required")
	}

	payload, err := json.Marshal(req.toBody())
	if err != nil {
		return nil, eris.Wrap(err, "lookup: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/consultas/nome", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "lookup: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrap(err, "lookup: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("lookup: unexpected status %d: %s", resp.StatusCode, errorText(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "lookup: unmarshal response")
	}
	return &result, nil
}

func (r Request) toBody() searchBody {
	return searchBody{Name: r.Name, ManualLink: r.ManualLink}
}

// errorText prefers the envelope's error field over the raw body.
func errorText(body []byte) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
	}
	const maxLen = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
