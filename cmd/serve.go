package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
	"github.com/artepuradesign/apipainellovable/internal/history"
	"github.com/artepuradesign/apipainellovable/internal/ledger"
	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/resilience"
	"github.com/artepuradesign/apipainellovable/internal/store"
	"github.com/artepuradesign/apipainellovable/internal/validate"
)

const shutdownTimeout = 20 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPI(env.History, env.NewOrchestrator)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- eris.Wrap(err, "server listen")
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
		api.wait()
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api serves searches and history over HTTP. Each user gets their own
// orchestrator, so a user can have one search in flight at a time while
// different users search concurrently.
type api struct {
	history *history.Reconciler
	newOrch func() (*consulta.Orchestrator, error)

	mu    sync.Mutex
	orchs map[string]*consulta.Orchestrator
}

func newAPI(h *history.Reconciler, newOrch func() (*consulta.Orchestrator, error)) *api {
	return &api{history: h, newOrch: newOrch, orchs: make(map[string]*consulta.Orchestrator)}
}

// orchestrator returns the user's orchestrator, creating it on first use.
func (a *api) orchestrator(userID string) (*consulta.Orchestrator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if o, ok := a.orchs[userID]; ok {
		return o, nil
	}
	o, err := a.newOrch()
	if err != nil {
		return nil, err
	}
	a.orchs[userID] = o
	return o, nil
}

// wait blocks until every pending history write has landed.
func (a *api) wait() {
	a.mu.Lock()
	orchs := make([]*consulta.Orchestrator, 0, len(a.orchs))
	for _, o := range a.orchs {
		orchs = append(orchs, o)
	}
	a.mu.Unlock()
	for _, o := range orchs {
		o.Wait()
	}
}

func (a *api) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/consultas", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", a.handleSearch)
		r.Get("/", a.handleList)
		r.Get("/stats", a.handleStats)
		r.Get("/{id}", a.handleShow)
		r.Get("/{id}/replay", a.handleReplay)
	})
	return r
}

type ctxKey int

const identityKey ctxKey = iota

// requireUser reads the caller from the X-User-ID and Authorization headers.
// The token is optional here; a search without one is rejected by the
// orchestrator with a session message.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if user == "" {
			writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		id := consulta.Identity{UserID: user, Token: token}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func identityFrom(ctx context.Context) consulta.Identity {
	id, _ := ctx.Value(identityKey).(consulta.Identity)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identityFrom(r.Context())
	orch, err := a.orchestrator(id.UserID)
	if err != nil {
		zap.L().Error("create orchestrator", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search unavailable")
		return
	}

	res, err := orch.Run(r.Context(), consulta.Request{Raw: req.Query, Identity: id})
	if errors.Is(err, consulta.ErrBusy) {
		writeError(w, http.StatusConflict, "a search is already in progress")
		return
	}
	writeJSONStatus(w, searchStatus(err), res)
}

// searchStatus maps a Run error to an HTTP status. The body always carries
// the result with its user-facing message.
func searchStatus(err error) int {
	var (
		valErr   *validate.ValidationError
		fundsErr *consulta.InsufficientFundsError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, consulta.ErrNoSession):
		return http.StatusUnauthorized
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fundsErr), errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, resilience.ErrBreakerOpen):
		return http.StatusServiceUnavailable
	default:
		var pe *consulta.ProviderError
		if errors.As(err, &pe) {
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	}
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := a.history.LoadRecent(r.Context(), identityFrom(r.Context()).UserID, limit)
	if err != nil {
		zap.L().Error("list history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSONStatus(w, http.StatusOK, recs)
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.history.Stats(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		zap.L().Error("history stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSONStatus(w, http.StatusOK, stats)
}

func (a *api) handleShow(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.ownRecord(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

func (a *api) handleReplay(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.ownRecord(w, r)
	if !ok {
		return
	}
	res, err := consulta.Replay(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not replay search")
		return
	}
	writeJSONStatus(w, http.StatusOK, res)
}

// ownRecord loads the {id} record if it belongs to the caller. Records of
// other users or other features are reported as not found.
func (a *api) ownRecord(w http.ResponseWriter, r *http.Request) (*model.ConsultationRecord, bool) {
	rec, err := a.history.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, history.ErrOutOfScope):
		writeError(w, http.StatusNotFound, "search not found")
		return nil, false
	case err != nil:
		zap.L().Error("get history record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load search")
		return nil, false
	}
	if rec.UserID != identityFrom(r.Context()).UserID {
		writeError(w, http.StatusNotFound, "search not found")
		return nil, false
	}
	return rec, true
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}
