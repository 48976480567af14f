package quote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/filestore"
)

// upstream serves canned payloads keyed by "resource/SYMBOL".
type upstream struct {
	mu       sync.Mutex
	payloads map[string]string
	calls    map[string]int
}

func (u *upstream) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := resource + "/" + symbol
	if u.calls == nil {
		u.calls = map[string]int{}
	}
	u.calls[key]++
	p, ok := u.payloads[key]
	if !ok {
		return nil, errors.New("upstream 404")
	}
	return json.RawMessage(p), nil
}

type cryptoUpstream map[string]float64

func (c cryptoUpstream) FetchBatch(ctx context.Context, resource string, keys []string) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if p, ok := c[k]; ok {
			b, _ := json.Marshal(models.CryptoQuote{Ticker: k, CoinID: "id-" + k, Price: p})
			out[k] = b
		}
	}
	return out, nil
}

func newTestCache(t *testing.T, f interfaces.ResourceFetcher, b interfaces.BatchFetcher) *cache.Cache {
	t.Helper()
	fs, err := filestore.New(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return cache.New(fs, common.NewFreshnessPolicy(nil), common.NewSilentLogger(), cache.WithFetcher(f), cache.WithBatchFetcher(b))
}

func TestEquityQuote(t *testing.T) {
	up := &upstream{payloads: map[string]string{
		"profile/AAPL": `{"symbol":"AAPL","price":190.25,"companyName":"Apple Inc.","image":"https://img/aapl.png","industry":"Consumer Electronics","currency":"USD"}`,
		"profile/NOPX": `{"symbol":"NOPX","companyName":"No Price"}`,
	}}
	svc := NewService(newTestCache(t, up, nil), common.NewSilentLogger(), false)
	ctx := context.Background()

	q, err := svc.EquityQuote(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, 190.25, q.Price)
	assert.Equal(t, "Apple Inc.", q.CompanyName)
	assert.Equal(t, "Consumer Electronics", q.Industry)

	_, err = svc.EquityQuote(ctx, "NOPX")
	assert.Error(t, err)

	_, err = svc.EquityQuote(ctx, "MISSING")
	assert.ErrorIs(t, err, cache.ErrNoData)
}

func TestCryptoQuotes(t *testing.T) {
	svc := NewService(newTestCache(t, nil, cryptoUpstream{"BTC": 65000, "ETH": 3200}), common.NewSilentLogger(), false)

	got, err := svc.CryptoQuotes(context.Background(), []string{"btc", "ETH", "LEDGER"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 65000.0, got["BTC"].Price)
	assert.Equal(t, "id-ETH", got["ETH"].CoinID)

	empty, err := svc.CryptoQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestContractPrice(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name   string
		c      chainContract
		want   float64
		wantOK bool
	}{
		{"last trade", chainContract{Last: f(4.2), Bid: f(4.0), Ask: f(4.4)}, 4.2, true},
		{"midpoint when no last", chainContract{Last: f(0), Bid: f(1.01), Ask: f(1.04)}, 1.03, true},
		{"midpoint when last null", chainContract{Bid: f(2.10), Ask: f(2.20)}, 2.15, true},
		{"zero bid", chainContract{Bid: f(0), Ask: f(1)}, 0, false},
		{"nothing", chainContract{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := contractPrice(tt.c)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestOptionPrices(t *testing.T) {
	chain := `[
		{"option_type":"call","strike":150.0,"last":12.5},
		{"option_type":"put","strike":150.0,"last":0,"bid":3.1,"ask":3.3},
		{"option_type":"call","strike":160.004,"last":7.25},
		{"option_type":"call","strike":170,"last":null,"bid":0,"ask":0}
	]`
	up := &upstream{payloads: map[string]string{
		"option_chain_2026-06-19/AAPL": chain,
	}}
	svc := NewService(newTestCache(t, up, nil), common.NewSilentLogger(), true)

	call150 := models.OptionQuoteKey{Underlying: "AAPL", Expiration: "2026-06-19", Strike: 150, OptionType: models.OptionTypeCall}
	put150 := models.OptionQuoteKey{Underlying: "AAPL", Expiration: "2026-06-19", Strike: 150, OptionType: models.OptionTypePut}
	call160 := models.OptionQuoteKey{Underlying: "aapl", Expiration: "2026-06-19", Strike: 160, OptionType: models.OptionTypeCall}
	call170 := models.OptionQuoteKey{Underlying: "AAPL", Expiration: "2026-06-19", Strike: 170, OptionType: models.OptionTypeCall}
	call155 := models.OptionQuoteKey{Underlying: "AAPL", Expiration: "2026-06-19", Strike: 155, OptionType: models.OptionTypeCall}
	msft := models.OptionQuoteKey{Underlying: "MSFT", Expiration: "2026-06-19", Strike: 400, OptionType: models.OptionTypeCall}

	got, err := svc.OptionPrices(context.Background(), []models.OptionQuoteKey{call150, put150, call160, call170, call155, msft})
	require.NoError(t, err)

	assert.Equal(t, 12.5, got[call150])
	assert.InDelta(t, 3.2, got[put150], 1e-9)
	assert.Equal(t, 7.25, got[call160], "strike within tolerance")
	assert.NotContains(t, got, call170, "no usable price")
	assert.NotContains(t, got, call155, "no contract at strike")
	assert.NotContains(t, got, msft, "chain fetch failed")

	assert.Equal(t, 1, up.calls["option_chain_2026-06-19/AAPL"], "one chain fetch per underlying and expiration")
}

func TestOptionPrices_Disabled(t *testing.T) {
	up := &upstream{}
	svc := NewService(newTestCache(t, up, nil), common.NewSilentLogger(), false)

	got, err := svc.OptionPrices(context.Background(), []models.OptionQuoteKey{{Underlying: "AAPL", Expiration: "2026-06-19", Strike: 150, OptionType: models.OptionTypeCall}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, up.calls)
}
