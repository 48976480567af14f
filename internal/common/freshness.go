package common

import (
	"math"
	"strings"
	"time"
)

// DefaultTTLDays applies to resources with no configured base policy.
const DefaultTTLDays = 1.0

// defaultTTLDays is the built-in per-resource freshness table, in days.
var defaultTTLDays = map[string]float64{
	// Identity and price-like data
	"profile":           1,
	"price_history":     1,
	"earnings_calendar": 1,

	// Quarterly and annual statements
	"income_quarterly": 90,
	"income_annual":    90,
	"balance_sheet":    90,
	"cash_flow":        90,
	"earnings":         90,
	"ratios":           90,
	"key_metrics":      90,

	// Analyst data
	"analyst_estimates":        30,
	"price_target_consensus":   1,
	"price_target_summary":     1,
	"analyst_grades":           1,
	"analyst_grades_consensus": 1,

	// Segmentation changes yearly
	"product_segments": 365,
	"geo_segments":     365,

	"search": 7,

	// News and trading activity
	"stock_news":               0.25,
	"insider_trading":          1,
	"senate_trades":            1,
	"market_earnings_calendar": 0.25,

	// Quote feeds and derived content
	"crypto_prices": 0.5,
	"option_chain":  15.0 / (24 * 60),
	"insights":      1,
}

// FreshnessPolicy maps resource names to TTLs. Resource names may carry
// dynamic suffixes ("price_history_30d"); lookups strip trailing
// "_segment" parts until a configured base resource matches.
type FreshnessPolicy struct {
	ttlDays map[string]float64
}

// NewFreshnessPolicy returns the built-in table with overrides applied.
// Non-positive override values are ignored.
func NewFreshnessPolicy(overrides map[string]float64) *FreshnessPolicy {
	table := make(map[string]float64, len(defaultTTLDays)+len(overrides))
	for k, v := range defaultTTLDays {
		table[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			table[strings.TrimSpace(k)] = v
		}
	}
	return &FreshnessPolicy{ttlDays: table}
}

// BaseResource resolves the policy key for a resource name.
func (p *FreshnessPolicy) BaseResource(resource string) (string, bool) {
	name := resource
	for {
		if _, ok := p.ttlDays[name]; ok {
			return name, true
		}
		idx := strings.LastIndex(name, "_")
		if idx <= 0 {
			return "", false
		}
		name = name[:idx]
	}
}

// TTLDays returns the freshness window for resource in days.
func (p *FreshnessPolicy) TTLDays(resource string) float64 {
	if base, ok := p.BaseResource(resource); ok {
		return p.ttlDays[base]
	}
	return DefaultTTLDays
}

// TTL returns the freshness window for resource.
func (p *FreshnessPolicy) TTL(resource string) time.Duration {
	return DaysToDuration(p.TTLDays(resource))
}

// Resources returns a copy of the policy table.
func (p *FreshnessPolicy) Resources() map[string]float64 {
	out := make(map[string]float64, len(p.ttlDays))
	for k, v := range p.ttlDays {
		out[k] = v
	}
	return out
}

// DaysToDuration converts fractional days to a duration, rounded to the second.
func DaysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days*24*3600)) * time.Second
}

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	return IsFreshAt(updated, time.Now(), ttl)
}

// IsFreshAt reports whether now is strictly before updated+ttl.
func IsFreshAt(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Before(updated.Add(ttl))
}
