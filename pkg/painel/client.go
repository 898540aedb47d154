// Package painel provides a client for the dashboard backend: wallet
// balances, module prices and subscription discounts.
package painel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/resilience"
)

// Client defines the dashboard backend operations. Every call carries the
// caller's session token.
type Client interface {
	// GetBalance returns the authoritative plan and wallet credit.
	GetBalance(ctx context.Context, token string) (model.BalanceState, error)
	// GetModule returns a module's title and price.
	GetModule(ctx context.Context, token string, id int) (*Module, error)
	// GetSubscription returns whether a subscription is active and its rate.
	GetSubscription(ctx context.Context, token string) (*Subscription, error)
	// CalculateDiscount asks the discount service for the final price.
	CalculateDiscount(ctx context.Context, token string, price model.Money) (*Discount, error)
}

// Module is a priced dashboard feature.
type Module struct {
	ID    int         `json:"id"`
	Title string      `json:"title"`
	Price model.Money `json:"price"`
}

// Subscription is the caller's plan status.
type Subscription struct {
	Active          bool    `json:"active"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Discount is the discount service's answer for one price.
type Discount struct {
	FinalPrice      model.Money `json:"final_price"`
	DiscountApplied bool        `json:"discount_applied"`
	DiscountPercent float64     `json:"discount_percent,omitempty"`
}

type balanceResponse struct {
	PlanBalance   model.Money `json:"plan_balance"`
	WalletBalance model.Money `json:"wallet_balance"`
}

type moduleResponse struct {
	Success bool   `json:"success"`
	Data    Module `json:"data"`
	Error   string `json:"error,omitempty"`
}

// Option configures the painel client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy sets the retry policy for reads.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryPolicy
}

// NewClient creates a painel client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.LogRetry("painel", "request")
	}
	return c
}

func (c *httpClient) GetBalance(ctx context.Context, token string) (model.BalanceState, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/wallet/balance", token, nil, &resp); err != nil {
		return model.BalanceState{}, eris.Wrap(err, "painel: get balance")
	}
	return model.BalanceState{PlanCredit: resp.PlanBalance, WalletCredit: resp.WalletBalance}, nil
}

func (c *httpClient) GetModule(ctx context.Context, token string, id int) (*Module, error) {
	var resp moduleResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/modules/%d", id), token, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "painel: get module %d", id)
	}
	if !resp.Success {
		return nil, eris.Errorf("painel: get module %d: %s", id, resp.Error)
	}
	return &resp.Data, nil
}

func (c *httpClient) GetSubscription(ctx context.Context, token string) (*Subscription, error) {
	var resp Subscription
	if err := c.do(ctx, http.MethodGet, "/subscription", token, nil, &resp); err != nil {
		return nil, eris.Wrap(err, "painel: get subscription")
	}
	return &resp, nil
}

func (c *httpClient) CalculateDiscount(ctx context.Context, token string, price model.Money) (*Discount, error) {
	body := struct {
		Price model.Money `json:"price"`
	}{Price: price}
	var resp Discount
	if err := c.do(ctx, http.MethodPost, "/subscription/discount", token, body, &resp); err != nil {
		return nil, eris.Wrap(err, "painel: calculate discount")
	}
	return &resp, nil
}

// do sends one request with retries on transient failures and decodes the
// JSON response into out. All painel calls are reads or pure calculations,
// so retrying them is safe.
func (c *httpClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "painel: marshal request")
		}
	}

	body, err := resilience.RetryVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, eris.Wrap(err, "painel: create request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "painel: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, eris.Wrap(err, "painel: read response body")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := eris.Errorf("painel: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "painel: unmarshal response")
	}
	return nil
}
