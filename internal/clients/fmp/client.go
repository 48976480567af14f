// Package fmp provides a client for the Financial Modeling Prep API
package fmp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com/stable"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	defaultHistoryDays = 365
)

// endpoint describes how a cache resource maps onto an FMP path.
type endpoint struct {
	path     string
	defaults map[string]string
	noSymbol bool   // symbol-less market endpoint
	query    string // parameter name carrying the symbol, "symbol" when empty
	first    bool   // unwrap the first element of an array response
	window   int    // days of from/to window forward from today, 0 for none
}

var endpoints = map[string]endpoint{
	models.ResourceProfile:                {path: "/profile", first: true},
	models.ResourceIncomeQuarterly:        {path: "/income-statement", defaults: map[string]string{"period": "quarter", "limit": "5"}},
	models.ResourceIncomeAnnual:           {path: "/income-statement", defaults: map[string]string{"period": "annual", "limit": "3"}},
	models.ResourceBalanceSheet:           {path: "/balance-sheet-statement", defaults: map[string]string{"period": "quarter", "limit": "1"}},
	models.ResourceCashFlow:               {path: "/cash-flow-statement", defaults: map[string]string{"period": "quarter", "limit": "1"}},
	models.ResourceEarnings:               {path: "/earnings", defaults: map[string]string{"limit": "5"}},
	models.ResourceRatios:                 {path: "/ratios", defaults: map[string]string{"period": "quarter", "limit": "1"}},
	models.ResourceKeyMetrics:             {path: "/key-metrics", defaults: map[string]string{"period": "quarter", "limit": "1"}},
	models.ResourceAnalystEstimates:       {path: "/analyst-estimates", defaults: map[string]string{"period": "quarter", "limit": "5"}},
	models.ResourcePriceHistory:           {path: "/historical-price-eod/full"},
	models.ResourceProductSegments:        {path: "/revenue-product-segmentation"},
	models.ResourceGeoSegments:            {path: "/revenue-geographic-segmentation"},
	models.ResourceEarningsCalendar:       {path: "/earnings-calendar", window: 90},
	models.ResourceStockNews:              {path: "/news/stock", query: "symbols", defaults: map[string]string{"limit": "10"}},
	models.ResourceInsiderTrading:         {path: "/insider-trading/search", defaults: map[string]string{"limit": "10"}},
	models.ResourceSenateTrades:           {path: "/senate-trades", defaults: map[string]string{"limit": "10"}},
	models.ResourcePriceTargetConsensus:   {path: "/price-target-consensus", first: true},
	models.ResourcePriceTargetSummary:     {path: "/price-target-summary", first: true},
	models.ResourceAnalystGrades:          {path: "/grades", defaults: map[string]string{"limit": "10"}},
	models.ResourceAnalystGradesConsensus: {path: "/grades-consensus", first: true},
	models.ResourceSearch:                 {path: "/search-name", query: "query", defaults: map[string]string{"limit": "10"}},
	models.ResourceMarketEarningsCalendar: {path: "/earnings-calendar", noSymbol: true, window: 7},
}

// Client fetches FMP resources by cache resource name
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// NewClient creates a new FMP client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Supports reports whether the resource (suffix allowed) maps to an FMP endpoint.
func (c *Client) Supports(resource string) bool {
	_, _, ok := lookup(resource)
	return ok
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("FMP API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// lookup strips trailing "_segment" parts until a known resource matches.
// The stripped suffix is returned so "price_history_30d" can size its window.
func lookup(resource string) (endpoint, string, bool) {
	name := resource
	for {
		if ep, ok := endpoints[name]; ok {
			return ep, strings.TrimPrefix(strings.TrimPrefix(resource, name), "_"), true
		}
		i := strings.LastIndex(name, "_")
		if i <= 0 {
			return endpoint{}, "", false
		}
		name = name[:i]
	}
}

// parseDays reads suffixes like "30d" or "1y" into a day count.
func parseDays(suffix string) int {
	if len(suffix) < 2 {
		return 0
	}
	n, err := strconv.Atoi(suffix[:len(suffix)-1])
	if err != nil || n <= 0 {
		return 0
	}
	switch suffix[len(suffix)-1] {
	case 'd':
		return n
	case 'w':
		return n * 7
	case 'm':
		return n * 30
	case 'y':
		return n * 365
	}
	return 0
}

// Fetch retrieves one resource for a symbol. Params override the endpoint
// defaults, e.g. "limit", or "from"/"to" for price history.
func (c *Client) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	ep, suffix, ok := lookup(resource)
	if !ok {
		return nil, fmt.Errorf("unknown FMP resource: %s", resource)
	}

	q := url.Values{}
	for k, v := range ep.defaults {
		q.Set(k, v)
	}
	if !ep.noSymbol {
		if symbol == "" {
			return nil, fmt.Errorf("resource %s requires a symbol", resource)
		}
		key := ep.query
		if key == "" {
			key = "symbol"
		}
		q.Set(key, strings.ToUpper(symbol))
	}

	today := c.now().UTC()
	switch {
	case ep.window > 0:
		q.Set("from", today.Format("2006-01-02"))
		q.Set("to", today.AddDate(0, 0, ep.window).Format("2006-01-02"))
	case resource != models.ResourcePriceHistory && strings.HasPrefix(resource, models.ResourcePriceHistory):
		days := parseDays(suffix)
		if days == 0 {
			days = defaultHistoryDays
		}
		q.Set("from", today.AddDate(0, 0, -days).Format("2006-01-02"))
		q.Set("to", today.Format("2006-01-02"))
	}

	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}

	raw, err := c.get(ctx, ep.path, q)
	if err != nil {
		return nil, err
	}

	if ep.first {
		return firstElement(raw, ep.path, symbol)
	}
	return raw, nil
}

// firstElement unwraps single-record endpoints that answer with an array.
func firstElement(raw json.RawMessage, path, symbol string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return raw, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(items) == 0 {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("no data for %s", strings.ToUpper(symbol)),
			Endpoint:   path,
		}
	}
	return items[0], nil
}

// get performs a rate-limited GET request and returns the raw JSON body
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Str("symbol", params.Get("symbol")).Msg("FMP API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// FMP reports plan and key problems as 200 {"Error Message": "..."}
	var fault struct {
		Message string `json:"Error Message"`
	}
	if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &fault) == nil && fault.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fault.Message,
			Endpoint:   path,
		}
	}

	return raw, nil
}

// Ensure Client implements ResourceFetcher
var _ interfaces.ResourceFetcher = (*Client)(nil)
