package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/artepuradesign/apipainellovable/internal/consulta"
	fetchermocks "github.com/artepuradesign/apipainellovable/internal/fetcher/mocks"
	"github.com/artepuradesign/apipainellovable/internal/history"
	"github.com/artepuradesign/apipainellovable/internal/model"
	"github.com/artepuradesign/apipainellovable/internal/pricing"
	"github.com/artepuradesign/apipainellovable/internal/store"
	"github.com/artepuradesign/apipainellovable/internal/validate"
	"github.com/artepuradesign/apipainellovable/pkg/lookup"
	lookupmocks "github.com/artepuradesign/apipainellovable/pkg/lookup/mocks"
	"github.com/artepuradesign/apipainellovable/pkg/painel"
	painelmocks "github.com/artepuradesign/apipainellovable/pkg/painel/mocks"
)

const testRoute = "/dashboard/consultar-nome-completo"

type testServer struct {
	api      *api
	handler  http.Handler
	store    store.Store
	provider *lookupmocks.MockClient
	painel   *painelmocks.MockClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "consulta.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	ts := &testServer{
		store:    st,
		provider: lookupmocks.NewMockClient(t),
		painel:   painelmocks.NewMockClient(t),
	}
	fetcher := fetchermocks.NewMockFetcher(t)

	ts.api = newAPI(history.NewReconciler(st, testRoute), func() (*consulta.Orchestrator, error) {
		return consulta.New(consulta.Config{
			ModuleID:      156,
			RouteKey:      testRoute,
			SourceFeature: "consultar-nome-completo",
			RouteTable:    pricing.RouteTable{testRoute: 1000},
		}, consulta.Deps{
			Validator: validate.New(nil, 0),
			Provider:  ts.provider,
			Painel:    ts.painel,
			Fetcher:   fetcher,
			Recorder:  st,
		})
	})
	ts.handler = ts.api.routes([]string{"*"})
	t.Cleanup(ts.api.wait)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("Authorization", "Bearer tok-"+user)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, st store.Store, rec model.ConsultationRecord) {
	t.Helper()
	require.NoError(t, st.CreateConsultation(context.Background(), &rec))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestConsultas_RequireUser(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/consultas", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearch_Success(t *testing.T) {
	ts := newTestServer(t)

	ts.painel.On("GetModule", mock.Anything, "tok-u1", 156).Return(nil, assert.AnError)
	ts.painel.On("GetSubscription", mock.Anything, "tok-u1").Return(&painel.Subscription{}, nil)
	ts.painel.On("GetBalance", mock.Anything, "tok-u1").Return(model.BalanceState{PlanCredit: 5000}, nil).Once()
	ts.provider.On("SearchByName", mock.Anything, lookup.Request{Name: "MARIA DA SILVA", Token: "tok-u1"}).
		Return(&lookup.Response{
			Success: true,
			Data:    lookup.Data{Records: []model.PersonRecord{{Name: "MARIA DA SILVA", DocumentID: "111"}}, TotalFound: 1},
		}, nil)
	ts.painel.On("GetBalance", mock.Anything, "tok-u1").Return(model.BalanceState{PlanCredit: 4000}, nil).Once()

	w := ts.do(t, http.MethodPost, "/api/consultas", "u1", `{"query":"MARIA DA SILVA"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res consulta.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, consulta.StateDone, res.State)
	assert.Equal(t, model.Money(1000), res.Quote.FinalPrice)
	assert.Equal(t, model.BalanceState{PlanCredit: 4000}, res.Balance)
	require.NotEmpty(t, res.RecordID)

	ts.api.wait()
	w = ts.do(t, http.MethodGet, "/api/consultas", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []model.ConsultationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, res.RecordID, recs[0].ID)
	assert.Equal(t, model.StatusCompleted, recs[0].Status)
}

func TestSearch_StatusMapping(t *testing.T) {
	ts := newTestServer(t)

	// Too short: rejected before any I/O.
	w := ts.do(t, http.MethodPost, "/api/consultas", "u1", `{"query":"ana"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "at least 5 characters")

	w = ts.do(t, http.MethodPost, "/api/consultas", "u1", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.painel.On("GetModule", mock.Anything, "tok-u2", 156).Return(&painel.Module{ID: 156, Price: 1000}, nil)
	ts.painel.On("GetSubscription", mock.Anything, "tok-u2").Return(&painel.Subscription{}, nil)
	ts.painel.On("GetBalance", mock.Anything, "tok-u2").Return(model.BalanceState{WalletCredit: 100}, nil)

	w = ts.do(t, http.MethodPost, "/api/consultas", "u2", `{"query":"MARIA DA SILVA"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient balance")
	ts.provider.AssertNotCalled(t, "SearchByName", mock.Anything, mock.Anything)
}

func TestSearch_ConflictWhileInFlight(t *testing.T) {
	ts := newTestServer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	ts.painel.On("GetModule", mock.Anything, "tok-u1", 156).Return(&painel.Module{ID: 156, Price: 1000}, nil)
	ts.painel.On("GetSubscription", mock.Anything, "tok-u1").Return(&painel.Subscription{}, nil)
	ts.painel.On("GetBalance", mock.Anything, "tok-u1").Return(model.BalanceState{PlanCredit: 5000}, nil)
	ts.provider.On("SearchByName", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&lookup.Response{Success: false, Error: "timeout"}, nil)

	done := make(chan int, 1)
	go func() {
		done <- ts.do(t, http.MethodPost, "/api/consultas", "u1", `{"query":"MARIA DA SILVA"}`).Code
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("search never reached the provider")
	}

	w := ts.do(t, http.MethodPost, "/api/consultas", "u1", `{"query":"JOAO SOUZA"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusBadGateway, <-done)
}

func TestHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	now := time.Now().UTC()
	seed(t, ts.store, model.ConsultationRecord{
		ID: "rec-own", UserID: "u1", QueryText: "MARIA DA SILVA", Cost: 1000,
		Status:    model.StatusCompleted,
		Outcome:   &model.LookupOutcome{Records: []model.PersonRecord{{Name: "MARIA DA SILVA"}}, TotalFound: 1},
		Metadata:  model.ConsultationMetadata{RouteKey: testRoute, FinalPrice: 1000, TotalFound: 1},
		CreatedAt: now,
	})
	seed(t, ts.store, model.ConsultationRecord{
		ID: "rec-other-user", UserID: "u2", QueryText: "JOAO SOUZA", Cost: 1000,
		Metadata:  model.ConsultationMetadata{RouteKey: testRoute},
		CreatedAt: now,
	})
	seed(t, ts.store, model.ConsultationRecord{
		ID: "rec-other-route", UserID: "u1", QueryText: "12345678900", Cost: 500,
		Metadata:  model.ConsultationMetadata{RouteKey: "/dashboard/consultar-cpf"},
		CreatedAt: now,
	})

	w := ts.do(t, http.MethodGet, "/api/consultas?limit=10", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []model.ConsultationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-own", recs[0].ID)

	w = ts.do(t, http.MethodGet, "/api/consultas?limit=-1", "u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/consultas/stats", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.StatsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, model.Money(1000), stats.TotalCost)

	w = ts.do(t, http.MethodGet, "/api/consultas/rec-own/replay", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res consulta.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Replayed)
	assert.Equal(t, 1, res.Outcome.TotalFound)

	w = ts.do(t, http.MethodGet, "/api/consultas/rec-own", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	for _, id := range []string{"rec-other-user", "rec-other-route", "missing"} {
		w = ts.do(t, http.MethodGet, "/api/consultas/"+id, "u1", "")
		assert.Equal(t, http.StatusNotFound, w.Code, id)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/consultas", nil)
	req.Header.Set("Origin", "https://painel.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-User-ID")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestSearchStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, searchStatus(nil))
	assert.Equal(t, http.StatusUnauthorized, searchStatus(consulta.ErrNoSession))
	assert.Equal(t, http.StatusUnprocessableEntity, searchStatus(validate.ErrEmpty))
	assert.Equal(t, http.StatusPaymentRequired, searchStatus(&consulta.InsufficientFundsError{Shortfall: 1}))
	assert.Equal(t, http.StatusBadGateway, searchStatus(&consulta.ProviderError{Reported: "timeout"}))
	assert.Equal(t, http.StatusServiceUnavailable, searchStatus(pricing.ErrNoPrice))
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
