package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// CacheService is the tiered cache's diagnostic and invalidation surface.
type CacheService interface {
	Status(symbol string) (*models.CacheStatus, error)
	Invalidate(symbol, resource string) error
	InvalidateSymbol(symbol string) error
	Clear() error
	RefreshDaily(symbol string) error
}

// QuoteService shapes cached payloads into typed quotes.
type QuoteService interface {
	// EquityQuote returns the profile-backed quote for an equity or fund.
	EquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error)

	// CryptoQuotes prices many tickers in one batched lookup. Unknown
	// tickers are absent from the result.
	CryptoQuotes(ctx context.Context, tickers []string) (map[string]models.CryptoQuote, error)

	// OptionPrices resolves premiums, one chain lookup per underlying and
	// expiration. Contracts with no usable price are absent from the result.
	OptionPrices(ctx context.Context, keys []models.OptionQuoteKey) (map[models.OptionQuoteKey]float64, error)
}

// ValuationService prices holdings and aggregates them.
type ValuationService interface {
	Enrich(ctx context.Context, holdings []models.Holding) []models.EnrichedHolding
	Summarize(enriched []models.EnrichedHolding) *models.PortfolioSummary
}

// SnapshotService stores daily summaries and reports trailing performance.
type SnapshotService interface {
	HasSnapshotToday(ctx context.Context) (bool, error)
	SaveSnapshot(ctx context.Context, summary *models.PortfolioSummary, force bool) (*models.SnapshotResult, error)
	GetNearest(ctx context.Context, target time.Time) (*models.Snapshot, error)
	GetPerformance(ctx context.Context) (*models.Performance, error)
	GetSnapshots(ctx context.Context, days int) ([]models.Snapshot, error)
	RenderHistoryChart(ctx context.Context, days int) ([]byte, error)
}

// PortfolioService manages holdings and the priced portfolio view.
type PortfolioService interface {
	AddHolding(ctx context.Context, input models.HoldingInput) (*models.Holding, error)
	GetHolding(ctx context.Context, id string) (*models.Holding, error)
	ListHoldings(ctx context.Context) ([]models.Holding, error)
	UpdateHolding(ctx context.Context, id string, update models.HoldingUpdate) (*models.Holding, error)
	DeleteHolding(ctx context.Context, id string) error
	HoldingsByTicker(ctx context.Context, ticker string) ([]models.Holding, error)
	Overview(ctx context.Context) (*models.HoldingsOverview, error)

	GetPortfolio(ctx context.Context) (*models.Portfolio, error)
	TakeSnapshot(ctx context.Context, force bool) (*models.SnapshotResult, error)
	Performance(ctx context.Context) (*models.Performance, error)
	Snapshots(ctx context.Context, days int) ([]models.Snapshot, error)
	HistoryChart(ctx context.Context, days int) ([]byte, error)
}

// MarketService serves company research built on cached resources.
type MarketService interface {
	CompanyOverview(ctx context.Context, symbol string) (*models.CompanyOverview, error)
	Insights(ctx context.Context, symbol string, force bool) (*models.Insights, error)
}

// WatchlistService manages followed symbols
type WatchlistService interface {
	List(ctx context.Context) ([]models.WatchlistEntry, error)
	Add(ctx context.Context, symbol, notes string) (*models.WatchlistItem, error)
	Remove(ctx context.Context, symbol string) error
}

// AuthService guards the portfolio with an optional 4-digit PIN.
type AuthService interface {
	VerifyPIN(ctx context.Context, pin string) (*models.PINVerification, error)
	SetPIN(ctx context.Context, currentPIN, newPIN string) error
	RemovePIN(ctx context.Context, currentPIN string) error
	PINSet(ctx context.Context) (bool, error)
	ValidateToken(token string) error
}
