package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test doubles ---

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	payloads map[string]string // resource -> JSON
	err      error
	params   map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.payloads[resource]
	if !ok {
		return nil, errors.New("unknown resource")
	}
	return json.RawMessage(p), nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBatch struct {
	calls  atomic.Int32
	prices map[string]float64
	err    error
	asked  [][]string
	mu     sync.Mutex
}

func (f *fakeBatch) FetchBatch(ctx context.Context, resource string, keys []string) (map[string]json.RawMessage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.asked = append(f.asked, keys)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if p, ok := f.prices[k]; ok {
			b, _ := json.Marshal(map[string]any{"ticker": k, "price": p})
			out[k] = b
		}
	}
	return out, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, opts ...Option) (*Cache, *filestore.Store, *clock) {
	t.Helper()
	logger := common.NewSilentLogger()
	fs, err := filestore.New(logger, t.TempDir())
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(fs, common.NewFreshnessPolicy(nil), logger, opts...), fs, clk
}

// --- Get ---

func TestGet_MissFetchesAndPersists(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"symbol":"AAPL","price":190.5}`}}
	c, fs, clk := newTestCache(t, WithFetcher(f))

	res, err := c.Get(context.Background(), "profile", "aapl")
	require.NoError(t, err)
	assert.Equal(t, SourceFetched, res.Source)
	assert.JSONEq(t, `{"symbol":"AAPL","price":190.5}`, string(res.Data))

	var entry models.CacheEntry
	require.NoError(t, fs.ReadJSON("AAPL", "profile", &entry))
	assert.Equal(t, "AAPL", entry.Symbol)
	assert.Equal(t, "profile", entry.Resource)
	assert.Equal(t, 1.0, entry.TTLDays)
	assert.True(t, entry.FetchedAt.Equal(clk.Now()))

	raw, err := os.ReadFile(filepath.Join(fs.Path(), "AAPL", "profile.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fetched_at"`)
	assert.Contains(t, string(raw), `"ttl_days"`)
}

func TestGet_FreshHitSkipsFetcher(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":1}`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	res, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, SourceHit, res.Source)
	assert.Equal(t, 1, f.Calls())
}

func TestGet_FreshnessBoundary(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"income_quarterly": `[{"revenue":1}]`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "income_quarterly", "MSFT")
	require.NoError(t, err)

	clk.Advance(30 * 24 * time.Hour)
	res, err := c.Get(ctx, "income_quarterly", "MSFT")
	require.NoError(t, err)
	assert.Equal(t, SourceHit, res.Source, "30-day-old quarterly data is fresh")

	clk.Advance(70 * 24 * time.Hour)
	res, err = c.Get(ctx, "income_quarterly", "MSFT")
	require.NoError(t, err)
	assert.Equal(t, SourceFetched, res.Source, "100-day-old quarterly data is refetched")
	assert.Equal(t, 2, f.Calls())
}

func TestGet_ExactExpiryIsStale(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"stock_news": `[]`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "stock_news", "TSLA")
	require.NoError(t, err)

	clk.Advance(6*time.Hour - time.Second)
	res, _ := c.Get(ctx, "stock_news", "TSLA")
	assert.Equal(t, SourceHit, res.Source)

	clk.Advance(time.Second)
	res, _ = c.Get(ctx, "stock_news", "TSLA")
	assert.Equal(t, SourceFetched, res.Source)
}

func TestGet_StaleFallbackOnFetchFailure(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":100}`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)

	clk.Advance(10 * 24 * time.Hour)
	f.err = errors.New("rate limited")

	res, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
	assert.True(t, res.Stale())
	assert.JSONEq(t, `{"price":100}`, string(res.Data))
}

func TestGet_NoDataWithoutEntry(t *testing.T) {
	upstream := errors.New("connection refused")
	f := &fakeFetcher{err: upstream}
	c, _, _ := newTestCache(t, WithFetcher(f))

	_, err := c.Get(context.Background(), "profile", "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.ErrorIs(t, err, upstream)
}

func TestGet_NoFetcherConfigured(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "profile", "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGet_UnusablePayloadNotCached(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"null", `null`},
		{"error message", `{"Error Message":"Invalid API KEY."}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{payloads: map[string]string{"profile": tt.payload}}
			c, fs, _ := newTestCache(t, WithFetcher(f))

			_, err := c.Get(context.Background(), "profile", "AAPL")
			assert.ErrorIs(t, err, ErrNoData)
			assert.False(t, fs.Exists("AAPL", "profile"))
		})
	}
}

func TestGet_UnusablePayloadFallsBackToStale(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":5}`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	f.payloads["profile"] = `{"Error Message":"Limit Reach"}`

	res, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
	assert.JSONEq(t, `{"price":5}`, string(res.Data))
}

func TestGet_CorruptEntryIsMiss(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":7}`}}
	c, fs, _ := newTestCache(t, WithFetcher(f))

	dir := filepath.Join(fs.Path(), "AAPL")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.json"), []byte(`{"fetched_at": garbage`), 0644))

	res, err := c.Get(context.Background(), "profile", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, SourceFetched, res.Source)
	assert.Equal(t, 1, f.Calls())

	// self-healed on write
	var entry models.CacheEntry
	require.NoError(t, fs.ReadJSON("AAPL", "profile", &entry))
	assert.JSONEq(t, `{"price":7}`, string(entry.Data))
}

func TestGet_CorruptEntryWithFailingFetchIsNoData(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	c, fs, _ := newTestCache(t, WithFetcher(f))

	dir := filepath.Join(fs.Path(), "AAPL")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.json"), []byte(`not json`), 0644))

	_, err := c.Get(context.Background(), "profile", "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGet_ForceRefresh(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":1}`}}
	c, _, _ := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "profile", "AAPL")
	require.NoError(t, err)
	res, err := c.Get(ctx, "profile", "AAPL", WithForceRefresh(true))
	require.NoError(t, err)
	assert.Equal(t, SourceFetched, res.Source)
	assert.Equal(t, 2, f.Calls())

	// a failed forced refresh still serves what is stored
	f.err = errors.New("down")
	res, err = c.Get(ctx, "profile", "AAPL", WithForceRefresh(true))
	require.NoError(t, err)
	assert.Equal(t, SourceStale, res.Source)
}

func TestGet_ParamsAndFetcherOverride(t *testing.T) {
	def := &fakeFetcher{payloads: map[string]string{}}
	c, _, _ := newTestCache(t, WithFetcher(def))

	override := interfaces.FetcherFunc(func(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
		return json.RawMessage(`{"commentary":"` + symbol + ` ` + params["tone"] + `"}`), nil
	})

	res, err := c.Get(context.Background(), "insights", "nvda", FetchWith(override), WithParams(map[string]string{"tone": "brief"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"commentary":"NVDA brief"}`, string(res.Data))
	assert.Equal(t, 0, def.Calls())
}

func TestGet_SymbolLessResourceUsesMarketDir(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"market_earnings_calendar_7d": `[]`}}
	c, fs, _ := newTestCache(t, WithFetcher(f))

	_, err := c.Get(context.Background(), "market_earnings_calendar_7d", "")
	require.NoError(t, err)
	assert.True(t, fs.Exists(models.MarketSymbol, "market_earnings_calendar_7d"))
}

func TestGet_DynamicSuffixUsesBasePolicy(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"price_history_30d": `[]`}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, err := c.Get(ctx, "price_history_30d", "AAPL")
	require.NoError(t, err)

	// shorter than the 1-day base policy, so still a hit
	clk.Advance(12 * time.Hour)
	res, _ := c.Get(ctx, "price_history_30d", "AAPL")
	assert.Equal(t, SourceHit, res.Source)
}

// --- GetBatch ---

func TestGetBatch_MergeNotOverwrite(t *testing.T) {
	b := &fakeBatch{prices: map[string]float64{"BTC": 60000, "ETH": 3000}}
	c, _, clk := newTestCache(t, WithBatchFetcher(b))
	ctx := context.Background()

	got, err := c.GetBatch(ctx, "crypto_prices", []string{"btc"})
	require.NoError(t, err)
	require.Contains(t, got, "BTC")

	clk.Advance(time.Hour)
	got, err = c.GetBatch(ctx, "crypto_prices", []string{"ETH"})
	require.NoError(t, err)
	require.Contains(t, got, "ETH")

	// BTC survives the ETH write and is served without another fetch
	got, err = c.GetBatch(ctx, "crypto_prices", []string{"BTC", "ETH"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestGetBatch_FetchesOnlyMissingKeys(t *testing.T) {
	b := &fakeBatch{prices: map[string]float64{"BTC": 1, "SOL": 2}}
	c, _, _ := newTestCache(t, WithBatchFetcher(b))
	ctx := context.Background()

	_, err := c.GetBatch(ctx, "crypto_prices", []string{"BTC"})
	require.NoError(t, err)
	_, err = c.GetBatch(ctx, "crypto_prices", []string{"BTC", "SOL", "SOL"})
	require.NoError(t, err)

	require.Len(t, b.asked, 2)
	assert.Equal(t, []string{"SOL"}, b.asked[1])
}

func TestGetBatch_StaleEntryNotMerged(t *testing.T) {
	b := &fakeBatch{prices: map[string]float64{"BTC": 1, "ETH": 2}}
	c, fs, clk := newTestCache(t, WithBatchFetcher(b))
	ctx := context.Background()

	_, err := c.GetBatch(ctx, "crypto_prices", []string{"BTC"})
	require.NoError(t, err)

	clk.Advance(13 * time.Hour) // past the 12h window
	_, err = c.GetBatch(ctx, "crypto_prices", []string{"ETH"})
	require.NoError(t, err)

	var entry models.CacheEntry
	require.NoError(t, fs.ReadJSON(models.MarketSymbol, "crypto_prices", &entry))
	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(entry.Data, &stored))
	assert.Contains(t, stored, "ETH")
	assert.NotContains(t, stored, "BTC", "expired keys are not carried into a fresh entry")
}

func TestGetBatch_StaleFallbackPerKey(t *testing.T) {
	b := &fakeBatch{prices: map[string]float64{"BTC": 1}}
	c, _, clk := newTestCache(t, WithBatchFetcher(b))
	ctx := context.Background()

	_, err := c.GetBatch(ctx, "crypto_prices", []string{"BTC"})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	b.err = errors.New("429 too many requests")

	got, err := c.GetBatch(ctx, "crypto_prices", []string{"BTC", "DOGE"})
	require.NoError(t, err)
	assert.Contains(t, got, "BTC")
	assert.NotContains(t, got, "DOGE")
}

func TestGetBatch_NoDataWhenNothingCached(t *testing.T) {
	b := &fakeBatch{err: errors.New("down")}
	c, _, _ := newTestCache(t, WithBatchFetcher(b))

	_, err := c.GetBatch(context.Background(), "crypto_prices", []string{"BTC"})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetBatch_UnknownKeysAbsent(t *testing.T) {
	b := &fakeBatch{prices: map[string]float64{"BTC": 1}}
	c, _, _ := newTestCache(t, WithBatchFetcher(b))

	got, err := c.GetBatch(context.Background(), "crypto_prices", []string{"BTC", "NOTACOIN"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// --- Status and invalidation ---

func TestStatus(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{
		"profile":          `{"price":1}`,
		"income_quarterly": `[]`,
	}}
	c, _, clk := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	_, _ = c.Get(ctx, "profile", "AAPL")
	_, _ = c.Get(ctx, "income_quarterly", "AAPL")
	fetched := clk.Now()
	clk.Advance(2 * 24 * time.Hour)

	status, err := c.Status("aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", status.Symbol)
	require.Len(t, status.Resources, 2)

	income := status.Resources[0]
	assert.Equal(t, "income_quarterly", income.Resource)
	assert.True(t, income.IsFresh)
	assert.Equal(t, 90.0, income.TTLDays)
	assert.True(t, income.ExpiresAt.Equal(fetched.Add(90*24*time.Hour)))

	profile := status.Resources[1]
	assert.Equal(t, "profile", profile.Resource)
	assert.False(t, profile.IsFresh)

	empty, err := c.Status("NOPE")
	require.NoError(t, err)
	assert.Empty(t, empty.Resources)
}

func TestInvalidation(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{
		"profile":           `{"price":1}`,
		"price_history_30d": `[]`,
		"balance_sheet":     `[]`,
	}}
	c, fs, _ := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	for _, r := range []string{"profile", "price_history_30d", "balance_sheet"} {
		_, err := c.Get(ctx, r, "AAPL")
		require.NoError(t, err)
		_, err = c.Get(ctx, r, "MSFT")
		require.NoError(t, err)
	}

	require.NoError(t, c.RefreshDaily("AAPL"))
	assert.False(t, fs.Exists("AAPL", "profile"))
	assert.False(t, fs.Exists("AAPL", "price_history_30d"))
	assert.True(t, fs.Exists("AAPL", "balance_sheet"))

	require.NoError(t, c.Invalidate("aapl", "balance_sheet"))
	assert.False(t, fs.Exists("AAPL", "balance_sheet"))

	require.NoError(t, c.InvalidateSymbol("MSFT"))
	assert.False(t, fs.Exists("MSFT", "profile"))

	_, err := c.Get(ctx, "profile", "TSLA")
	require.NoError(t, err)
	require.NoError(t, c.Clear())
	assert.False(t, fs.Exists("TSLA", "profile"))
}

func TestInvalidateSymbol_DotSymbolsRejected(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":1}`}}
	c, fs, _ := newTestCache(t, WithFetcher(f))
	ctx := context.Background()

	for _, sym := range []string{"AAPL", "MSFT"} {
		_, err := c.Get(ctx, "profile", sym)
		require.NoError(t, err)
	}

	for _, sym := range []string{".", "..", " . ", "..."} {
		err := c.InvalidateSymbol(sym)
		assert.ErrorIs(t, err, ErrInvalidSymbol, "symbol %q", sym)
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.ErrorIs(t, c.Invalidate(sym, "profile"), ErrInvalidSymbol)
		assert.ErrorIs(t, c.RefreshDaily(sym), ErrInvalidSymbol)
		_, err = c.Status(sym)
		assert.ErrorIs(t, err, ErrInvalidSymbol)
		_, err = c.Get(ctx, "profile", sym)
		assert.ErrorIs(t, err, ErrInvalidSymbol)
	}

	assert.True(t, fs.Exists("AAPL", "profile"))
	assert.True(t, fs.Exists("MSFT", "profile"))
	status, err := c.Status("MSFT")
	require.NoError(t, err)
	assert.Len(t, status.Resources, 1)
}

func TestGet_ConcurrentSameKey(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]string{"profile": `{"price":1}`}}
	c, _, _ := newTestCache(t, WithFetcher(f))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "profile", "AAPL"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Get failed: %v", err)
	}
}
