// Package clients routes cache resources to the upstream client that serves them.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// symbolFetcher is an upstream client that can say which resources it serves.
type symbolFetcher interface {
	interfaces.ResourceFetcher
	Supports(resource string) bool
}

// Registry dispatches single-symbol and batch fetches. Option chains go to
// the options client, crypto prices to the batch client and everything else
// to the market-data client.
type Registry struct {
	market  symbolFetcher
	options interfaces.ResourceFetcher
	crypto  interfaces.BatchFetcher
}

// NewRegistry wires the upstream clients. Any of them may be nil; requests
// routed to a missing client fail and the cache falls back to stale data.
func NewRegistry(market symbolFetcher, options interfaces.ResourceFetcher, crypto interfaces.BatchFetcher) *Registry {
	return &Registry{market: market, options: options, crypto: crypto}
}

// Fetch implements ResourceFetcher.
func (r *Registry) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	if strings.HasPrefix(resource, models.ResourceOptionChain+"_") {
		if r.options == nil {
			return nil, fmt.Errorf("no options client configured for %s", resource)
		}
		return r.options.Fetch(ctx, resource, symbol, params)
	}
	if r.market == nil || !r.market.Supports(resource) {
		return nil, fmt.Errorf("no upstream serves resource %s", resource)
	}
	return r.market.Fetch(ctx, resource, symbol, params)
}

// FetchBatch implements BatchFetcher.
func (r *Registry) FetchBatch(ctx context.Context, resource string, keys []string) (map[string]json.RawMessage, error) {
	if resource != models.ResourceCryptoPrices || r.crypto == nil {
		return nil, fmt.Errorf("no batch upstream serves resource %s", resource)
	}
	return r.crypto.FetchBatch(ctx, resource, keys)
}

var (
	_ interfaces.ResourceFetcher = (*Registry)(nil)
	_ interfaces.BatchFetcher    = (*Registry)(nil)
)
