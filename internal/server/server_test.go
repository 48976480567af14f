package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/auth"
	"github.com/bobmcallan/folio/internal/services/market"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/services/quote"
	"github.com/bobmcallan/folio/internal/services/snapshot"
	"github.com/bobmcallan/folio/internal/services/valuation"
	"github.com/bobmcallan/folio/internal/services/watchlist"
	"github.com/bobmcallan/folio/internal/storage/filestore"
)

// profileFetcher serves profile payloads for known symbols and fails
// everything else.
type profileFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (f *profileFetcher) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[symbol]
	if !ok || resource != models.ResourceProfile {
		return nil, errors.New("upstream unavailable")
	}
	return json.RawMessage(fmt.Sprintf(`{"symbol":%q,"companyName":"%s Inc.","price":%g}`, symbol, symbol, price)), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := common.NewSilentLogger()

	mgr, err := filestore.NewManager(logger, t.TempDir())
	require.NoError(t, err)
	cacheFS, err := filestore.New(logger, t.TempDir())
	require.NoError(t, err)

	fetcher := &profileFetcher{prices: map[string]float64{"AAPL": 200, "MSFT": 400}}
	c := cache.New(cacheFS, common.NewFreshnessPolicy(nil), logger, cache.WithFetcher(fetcher))

	quotes := quote.NewService(c, logger, false)
	snapshots := snapshot.NewService(mgr.SnapshotStore(), logger)
	authService, err := auth.NewService(mgr.KeyValueStore(), &common.AuthConfig{JWTSecret: "test-secret"}, logger)
	require.NoError(t, err)

	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           logger,
		Storage:          mgr,
		Cache:            c,
		PortfolioService: portfolio.NewService(mgr.HoldingStore(), quotes, valuation.NewService(quotes, logger, 2), snapshots, mgr, logger),
		MarketService:    market.NewService(c, nil, logger),
		WatchlistService: watchlist.NewService(mgr.WatchlistStore(), quotes, logger),
		AuthService:      authService,
		StartupTime:      time.Now(),
	}
	return NewServer(a)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func do(t *testing.T, srv *Server, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec), "version")
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/health", nil, "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Correlation-ID"))

	rec = do(t, srv, http.MethodGet, "/api/health", nil)
	assert.Len(t, rec.Header().Get("X-Correlation-ID"), 8)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodOptions, "/api/portfolio", nil,
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHoldingLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/portfolio", jsonBody(t, map[string]interface{}{
		"ticker": "aapl", "quantity": 10, "costBasis": 150, "accountName": "Brokerage",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	h := decode[models.Holding](t, rec)
	assert.Equal(t, "AAPL", h.Ticker)
	assert.Equal(t, models.AssetTypeEquity, h.AssetType)

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[models.Portfolio](t, rec)
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, 2000.0, p.Summary.TotalValue)
	assert.Equal(t, 1500.0, p.Summary.TotalCost)

	rec = do(t, srv, http.MethodPut, "/api/portfolio/"+h.ID, jsonBody(t, map[string]interface{}{"quantity": 12}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12.0, decode[models.Holding](t, rec).Quantity)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/ticker/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Holding](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Brokerage"}, decode[models.HoldingsOverview](t, rec).Accounts)

	rec = do(t, srv, http.MethodDelete, "/api/portfolio/"+h.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/"+h.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddHoldingErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"ticker":`, http.StatusBadRequest, ""},
		{"unknown ticker", `{"ticker":"ZZZZ","quantity":1,"costBasis":1}`, http.StatusNotFound, "ticker_not_found"},
		{"bad asset type", `{"ticker":"AAPL","quantity":1,"costBasis":1,"assetType":"bond"}`, http.StatusBadRequest, "invalid_request"},
		{"option missing fields", `{"ticker":"AAPL250620C00200000","quantity":1,"costBasis":1,"assetType":"option"}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/portfolio", bytes.NewBufferString(tt.body))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
			}
		})
	}
}

func TestSnapshotAndPerformance(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/portfolio/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.SnapshotResult](t, rec).Skipped, "no holdings")

	rec = do(t, srv, http.MethodPost, "/api/portfolio", jsonBody(t, map[string]interface{}{
		"ticker": "MSFT", "quantity": 2, "costBasis": 300,
	}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/snapshot", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.SnapshotResult](t, rec)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 800.0, first.TotalValue)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.SnapshotResult](t, rec).AlreadyExists)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/snapshot?force=true", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/snapshots?days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Snapshot](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perf := decode[models.Performance](t, rec)
	assert.Len(t, perf.History, 1)
	assert.Contains(t, perf.Periods, models.Period1W)

	rec = do(t, srv, http.MethodGet, "/api/portfolio/chart", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_enough_history", decode[ErrorResponse](t, rec).Code)
}

func TestPINGuard(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code, "open without a PIN")

	rec = do(t, srv, http.MethodPost, "/api/portfolio/set-pin", jsonBody(t, map[string]string{"newPin": "12"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/set-pin", jsonBody(t, map[string]string{"newPin": "1234"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/verify-pin", jsonBody(t, map[string]string{"pin": "0000"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.PINVerification](t, rec).Verified)

	rec = do(t, srv, http.MethodPost, "/api/portfolio/verify-pin", jsonBody(t, map[string]string{"pin": "1234"}))
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[models.PINVerification](t, rec)
	require.True(t, v.Verified)
	require.NotEmpty(t, v.Token)

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil, "Authorization", "Bearer "+v.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/watchlist", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "watchlist is not PIN guarded")

	rec = do(t, srv, http.MethodPost, "/api/portfolio/set-pin", jsonBody(t, map[string]string{"currentPin": "9999", "newPin": "5678"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/portfolio/pin", jsonBody(t, map[string]string{"currentPin": "1234"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/portfolio", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompanyRoutesAndCache(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/companies/aapl/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decode[models.CompanyOverview](t, rec)
	assert.Equal(t, "AAPL Inc.", o.Profile.Name)
	assert.NotEmpty(t, o.Degraded)

	rec = do(t, srv, http.MethodGet, "/api/companies/ZZZZ/overview", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/companies/AAPL/insights", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/cache/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.CacheStatus](t, rec)
	require.NotEmpty(t, status.Resources)
	assert.Equal(t, models.ResourceProfile, status.Resources[0].Resource)
	assert.True(t, status.Resources[0].IsFresh)

	rec = do(t, srv, http.MethodPost, "/api/cache/AAPL/refresh", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/cache/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.CacheStatus](t, rec).Resources)

	rec = do(t, srv, http.MethodDelete, "/api/cache/AAPL/profile", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWatchlistRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/watchlist", jsonBody(t, map[string]string{"symbol": "msft", "notes": "cloud"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/watchlist", jsonBody(t, map[string]string{"symbol": " "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]models.WatchlistEntry](t, rec)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Price)
	assert.Equal(t, 400.0, *entries[0].Price)

	rec = do(t, srv, http.MethodDelete, "/api/watchlist/MSFT", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/watchlist/MSFT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("holding x: %w", interfaces.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: ZZZZ", models.ErrTickerNotFound), http.StatusNotFound},
		{fmt.Errorf("profile: %w", cache.ErrNoData), http.StatusBadGateway},
		{auth.ErrIncorrectPIN, http.StatusForbidden},
		{auth.ErrInvalidPIN, http.StatusBadRequest},
		{market.ErrInsightsUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
