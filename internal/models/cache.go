package models

import (
	"encoding/json"
	"time"
)

// Resource names understood by the cache and the upstream clients.
// Some carry dynamic suffixes, e.g. "price_history_30d" or
// "option_chain_2025-06-20".
const (
	ResourceProfile                = "profile"
	ResourceIncomeQuarterly        = "income_quarterly"
	ResourceIncomeAnnual           = "income_annual"
	ResourceBalanceSheet           = "balance_sheet"
	ResourceCashFlow               = "cash_flow"
	ResourceEarnings               = "earnings"
	ResourceRatios                 = "ratios"
	ResourceKeyMetrics             = "key_metrics"
	ResourceAnalystEstimates       = "analyst_estimates"
	ResourcePriceHistory           = "price_history"
	ResourceProductSegments        = "product_segments"
	ResourceGeoSegments            = "geo_segments"
	ResourceEarningsCalendar       = "earnings_calendar"
	ResourceStockNews              = "stock_news"
	ResourceInsiderTrading         = "insider_trading"
	ResourceSenateTrades           = "senate_trades"
	ResourcePriceTargetConsensus   = "price_target_consensus"
	ResourcePriceTargetSummary     = "price_target_summary"
	ResourceAnalystGrades          = "analyst_grades"
	ResourceAnalystGradesConsensus = "analyst_grades_consensus"
	ResourceSearch                 = "search"
	ResourceMarketEarningsCalendar = "market_earnings_calendar"
	ResourceCryptoPrices           = "crypto_prices"
	ResourceOptionChain            = "option_chain"
	ResourceInsights               = "insights"
)

// MarketSymbol is the cache key for symbol-less and batch resources.
const MarketSymbol = "_market"

// OptionChainResource returns the cache resource for one expiration's chain.
func OptionChainResource(expiration string) string {
	return ResourceOptionChain + "_" + expiration
}

// CacheEntry is one persisted (symbol, resource) payload.
type CacheEntry struct {
	Symbol    string          `json:"symbol"`
	Resource  string          `json:"resource"`
	FetchedAt time.Time       `json:"fetched_at"`
	TTLDays   float64         `json:"ttl_days"`
	Data      json.RawMessage `json:"data"`
}

// ResourceStatus reports freshness for one cached resource.
type ResourceStatus struct {
	Resource  string    `json:"resource"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsFresh   bool      `json:"isFresh"`
	TTLDays   float64   `json:"ttlDays"`
}

// CacheStatus is the diagnostic view of everything cached for a symbol.
type CacheStatus struct {
	Symbol    string           `json:"symbol"`
	Resources []ResourceStatus `json:"resources"`
}
