// Package tradier provides a client for Tradier option chains
package tradier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://sandbox.tradier.com/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client fetches option chains
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

// NewClient creates a new Tradier client
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

// IsConfigured reports whether an API key is set. Without one, options
// are left unpriced.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Tradier API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// chainResponse mirrors the Tradier envelope. "options" is null when the
// expiration has no chain, and "option" is an object rather than an array
// when only one contract is listed.
type chainResponse struct {
	Options *struct {
		Option json.RawMessage `json:"option"`
	} `json:"options"`
}

// Fetch retrieves the chain for resource "option_chain_<YYYY-MM-DD>" on the
// given underlying. The payload is a JSON array of contracts.
func (c *Client) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	prefix := models.ResourceOptionChain + "_"
	if !strings.HasPrefix(resource, prefix) {
		return nil, fmt.Errorf("unknown Tradier resource: %s", resource)
	}
	expiration := strings.TrimPrefix(resource, prefix)
	if _, err := time.Parse("2006-01-02", expiration); err != nil {
		return nil, fmt.Errorf("invalid option chain expiration %q: %w", expiration, err)
	}
	if !c.IsConfigured() {
		return nil, fmt.Errorf("tradier API key not configured")
	}

	underlying := strings.ToUpper(strings.TrimSpace(symbol))
	q := url.Values{}
	q.Set("symbol", underlying)
	q.Set("expiration", expiration)
	q.Set("greeks", "false")

	var resp chainResponse
	if err := c.get(ctx, "/markets/options/chains", q, &resp); err != nil {
		return nil, err
	}

	if resp.Options == nil || len(resp.Options.Option) == 0 || string(resp.Options.Option) == "null" {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("no chain for %s expiring %s", underlying, expiration),
			Endpoint:   "/markets/options/chains",
		}
	}

	chain := bytes.TrimSpace(resp.Options.Option)
	if chain[0] == '{' {
		chain = append(append([]byte{'['}, chain...), ']')
	}

	c.logger.Debug().Str("underlying", underlying).Str("expiration", expiration).Msg("Fetched option chain")
	return json.RawMessage(chain), nil
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Tradier API request")

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

// Ensure Client implements ResourceFetcher
var _ interfaces.ResourceFetcher = (*Client)(nil)
