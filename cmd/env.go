package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
	"github.com/artepuradesign/apipainellovable/internal/fetcher"
	"github.com/artepuradesign/apipainellovable/internal/history"
	"github.com/artepuradesign/apipainellovable/internal/pricing"
	"github.com/artepuradesign/apipainellovable/internal/resilience"
	"github.com/artepuradesign/apipainellovable/internal/store"
	"github.com/artepuradesign/apipainellovable/internal/validate"
	"github.com/artepuradesign/apipainellovable/pkg/lookup"
	"github.com/artepuradesign/apipainellovable/pkg/painel"
)

// consultaEnv holds the initialized store, clients and settings shared by
// the search and serve commands.
type consultaEnv struct {
	Store   store.Store
	History *history.Reconciler

	config consulta.Config
	deps   consulta.Deps
}

// Close releases resources held by the environment.
func (e *consultaEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// NewOrchestrator builds an orchestrator over the shared clients. The
// provider breaker is shared too, so an outage seen by one user fails fast
// for all.
func (e *consultaEnv) NewOrchestrator() (*consulta.Orchestrator, error) {
	return consulta.New(e.config, e.deps)
}

// initEnv sets up the store, the dashboard and provider clients, the report
// fetcher and the price table. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*consultaEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	table, err := routeTable()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	providerClient := lookup.NewClient(cfg.Provider.BaseURL,
		lookup.WithTimeout(time.Duration(cfg.Provider.TimeoutSecs)*time.Second))
	painelClient := painel.NewClient(cfg.Painel.BaseURL,
		painel.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Painel.TimeoutSecs) * time.Second}),
		painel.WithRetryPolicy(resilience.PolicyFromConfig(
			cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)),
	)
	reportFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:     cfg.Fallback.UserAgent,
		Timeout:       cfg.Fallback.Timeout(),
		MaxRetries:    cfg.Retry.MaxAttempts - 1,
		MaxBodyBytes:  cfg.Fallback.MaxBodyBytes,
		RatePerSecond: cfg.Fallback.RatePerSecond,
	})

	breakerCfg := resilience.BreakerFromConfig("lookup", cfg.Circuit.FailureThreshold, cfg.Circuit.CooldownSecs)
	breakerCfg.Counts = resilience.IsTransient

	env := &consultaEnv{
		Store: st,
		History: history.NewReconciler(st, cfg.Consulta.RouteKey,
			history.WithPageSize(cfg.History.PageSize)),
		config: consulta.Config{
			ModuleID:        cfg.Consulta.ModuleID,
			RouteKey:        cfg.Consulta.RouteKey,
			SourceFeature:   cfg.Consulta.SourceFeature,
			RouteTable:      table,
			FallbackTimeout: cfg.Fallback.Timeout(),
		},
		deps: consulta.Deps{
			Validator: validate.New(cfg.Consulta.TrustedHosts, cfg.Consulta.MinLength),
			Provider:  providerClient,
			Painel:    painelClient,
			Fetcher:   reportFetcher,
			Recorder:  st,
			Breaker:   resilience.NewBreaker(breakerCfg),
		},
	}

	zap.L().Debug("consulta environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Int("module_id", cfg.Consulta.ModuleID),
		zap.Int("priced_routes", len(table)),
	)
	return env, nil
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "consulta.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// routeTable builds the static price table: config entries, overridden by
// the optional route table file.
func routeTable() (pricing.RouteTable, error) {
	table := pricing.TableFromFloats(cfg.Pricing.RoutePrices)
	if cfg.Pricing.RouteTableFile == "" {
		return table, nil
	}
	fromFile, err := pricing.LoadRouteTable(cfg.Pricing.RouteTableFile)
	if err != nil {
		return nil, err
	}
	return table.Merge(fromFile), nil
}
