// Package coingecko provides a client for the CoinGecko simple price API
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 1 // requests per second, free tier
)

// coinIDs maps exchange tickers to CoinGecko coin ids. Tickers not listed
// are never sent upstream.
var coinIDs = map[string]string{
	"BTC":    "bitcoin",
	"ETH":    "ethereum",
	"SOL":    "solana",
	"XRP":    "ripple",
	"ADA":    "cardano",
	"DOGE":   "dogecoin",
	"DOT":    "polkadot",
	"AVAX":   "avalanche-2",
	"MATIC":  "matic-network",
	"LINK":   "chainlink",
	"SHIB":   "shiba-inu",
	"LTC":    "litecoin",
	"UNI":    "uniswap",
	"ATOM":   "cosmos",
	"XLM":    "stellar",
	"ALGO":   "algorand",
	"VET":    "vechain",
	"FIL":    "filecoin",
	"HBAR":   "hedera-hashgraph",
	"ICP":    "internet-computer",
	"APT":    "aptos",
	"ARB":    "arbitrum",
	"OP":     "optimism",
	"NEAR":   "near",
	"INJ":    "injective-protocol",
	"TIA":    "celestia",
	"SUI":    "sui",
	"SEI":    "sei-network",
	"JUP":    "jupiter-exchange-solana",
	"RENDER": "render-token",
	"PEPE":   "pepe",
	"WIF":    "dogwifcoin",
	"BONK":   "bonk",
	"FLOKI":  "floki",
	"MEME":   "memecoin-2",
	"ONDO":   "ondo-finance",
	"ENA":    "ethena",
	"JASMY":  "jasmycoin",
	"FET":    "fetch-ai",
	"BCH":    "bitcoin-cash",
	"TRX":    "tron",
	"TON":    "the-open-network",
	"MKR":    "maker",
	"AAVE":   "aave",
	"CRV":    "curve-dao-token",
	"SNX":    "havven",
	"COMP":   "compound-governance-token",
	"GRT":    "the-graph",
	"ENS":    "ethereum-name-service",
	"LDO":    "lido-dao",
	"RPL":    "rocket-pool",
	"SAND":   "the-sandbox",
	"MANA":   "decentraland",
	"APE":    "apecoin",
	"AXS":    "axie-infinity",
	"IMX":    "immutable-x",
	"GALA":   "gala",
}

// CoinID returns the CoinGecko id for a ticker.
func CoinID(ticker string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(strings.TrimSpace(ticker))]
	return id, ok
}

// Client prices crypto tickers in batches
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new CoinGecko client. The API key is optional; the
// public tier works without one.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CoinGecko API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type simplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USDMarketCap float64 `json:"usd_market_cap"`
	USD24hVol    float64 `json:"usd_24h_vol"`
}

// FetchBatch prices the given tickers in one /simple/price call. Tickers
// without a known coin id, or that CoinGecko does not return, are omitted.
func (c *Client) FetchBatch(ctx context.Context, resource string, tickers []string) (map[string]json.RawMessage, error) {
	if resource != models.ResourceCryptoPrices {
		return nil, fmt.Errorf("unknown CoinGecko resource: %s", resource)
	}

	wanted := make(map[string]string, len(tickers))
	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if id, ok := coinIDs[ticker]; ok {
			wanted[ticker] = id
		} else {
			c.logger.Debug().Str("ticker", ticker).Msg("No CoinGecko id for ticker, skipping")
		}
	}

	out := make(map[string]json.RawMessage, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(wanted))
	for _, id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")
	params.Set("include_market_cap", "true")
	params.Set("include_24hr_vol", "true")

	var prices map[string]simplePrice
	if err := c.get(ctx, "/simple/price", params, &prices); err != nil {
		return nil, err
	}

	for ticker, id := range wanted {
		p, ok := prices[id]
		if !ok {
			continue
		}
		data, err := json.Marshal(models.CryptoQuote{
			Ticker:    ticker,
			CoinID:    id,
			Price:     p.USD,
			Change24h: p.USD24hChange,
			MarketCap: p.USDMarketCap,
			Volume24h: p.USD24hVol,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode quote for %s: %w", ticker, err)
		}
		out[ticker] = data
	}

	c.logger.Info().Int("requested", len(tickers)).Int("priced", len(out)).Msg("Fetched crypto prices")
	return out, nil
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("CoinGecko API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Ensure Client implements BatchFetcher
var _ interfaces.BatchFetcher = (*Client)(nil)
