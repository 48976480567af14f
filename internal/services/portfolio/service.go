// Package portfolio manages stored holdings and the priced portfolio view
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// chartsDir is the storage subdirectory history charts are written to.
const chartsDir = "charts"

// RawWriter persists binary artifacts such as rendered charts.
type RawWriter interface {
	WriteRaw(subdir, key string, data []byte) error
}

// Service implements PortfolioService
type Service struct {
	holdings  interfaces.HoldingStore
	quotes    interfaces.QuoteService
	valuation interfaces.ValuationService
	snapshots interfaces.SnapshotService
	raw       RawWriter
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a new portfolio service. raw may be nil, in which case
// rendered charts are returned but not persisted.
func NewService(
	holdings interfaces.HoldingStore,
	quotes interfaces.QuoteService,
	valuation interfaces.ValuationService,
	snapshots interfaces.SnapshotService,
	raw RawWriter,
	logger *common.Logger,
) *Service {
	return &Service{
		holdings:  holdings,
		quotes:    quotes,
		valuation: valuation,
		snapshots: snapshots,
		raw:       raw,
		logger:    logger,
		now:       time.Now,
	}
}

// AddHolding validates and stores a new holding. Equity and fund tickers
// must resolve to an upstream profile.
func (s *Service) AddHolding(ctx context.Context, input models.HoldingInput) (*models.Holding, error) {
	ticker := strings.ToUpper(strings.TrimSpace(input.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrValidation)
	}

	assetType := models.CategorizeTicker(ticker)
	if input.AssetType != "" {
		parsed, err := models.ParseAssetType(input.AssetType)
		if err != nil {
			return nil, err
		}
		assetType = parsed
	}

	h := &models.Holding{
		ID:           uuid.New().String(),
		Ticker:       ticker,
		Quantity:     input.Quantity,
		CostBasis:    input.CostBasis,
		AccountName:  strings.TrimSpace(input.AccountName),
		AssetType:    assetType,
		OptionFields: input.OptionFields,
		AddedAt:      s.now(),
	}
	h.OptionFields.Normalize()
	if h.AssetType != models.AssetTypeOption {
		h.OptionFields = nil
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	if assetType == models.AssetTypeEquity || assetType == models.AssetTypeFund {
		if _, err := s.quotes.EquityQuote(ctx, ticker); err != nil {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Ticker validation failed")
			return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
		}
	}

	if err := s.holdings.SaveHolding(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to save holding: %w", err)
	}

	s.logger.Info().
		Str("id", h.ID).
		Str("ticker", h.Ticker).
		Str("asset_type", string(h.AssetType)).
		Float64("quantity", h.Quantity).
		Msg("Holding added")
	return h, nil
}

// GetHolding returns one holding, wrapping ErrNotFound when absent.
func (s *Service) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	h, err := s.holdings.GetHolding(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("holding %s: %w", id, err)
	}
	return h, nil
}

// ListHoldings returns every holding, newest first.
func (s *Service) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	list, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].AddedAt.After(list[j].AddedAt)
	})
	return list, nil
}

// UpdateHolding applies a partial update.
func (s *Service) UpdateHolding(ctx context.Context, id string, update models.HoldingUpdate) (*models.Holding, error) {
	h, err := s.GetHolding(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(h, s.now())
	if h.AssetType != models.AssetTypeOption {
		h.OptionFields = nil
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	if err := s.holdings.SaveHolding(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to save holding: %w", err)
	}
	s.logger.Info().Str("id", id).Str("ticker", h.Ticker).Msg("Holding updated")
	return h, nil
}

// DeleteHolding removes a holding.
func (s *Service) DeleteHolding(ctx context.Context, id string) error {
	if err := s.holdings.DeleteHolding(ctx, id); err != nil {
		return fmt.Errorf("holding %s: %w", id, err)
	}
	s.logger.Info().Str("id", id).Msg("Holding removed")
	return nil
}

// HoldingsByTicker returns every holding of ticker across accounts.
func (s *Service) HoldingsByTicker(ctx context.Context, ticker string) ([]models.Holding, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	all, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Holding, 0)
	for _, h := range all {
		if h.Ticker == ticker {
			out = append(out, h)
		}
	}
	return out, nil
}

// Overview groups holdings by asset type and lists account names.
func (s *Service) Overview(ctx context.Context) (*models.HoldingsOverview, error) {
	all, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}

	o := &models.HoldingsOverview{
		TotalHoldings: len(all),
		ByAssetType:   make(map[models.AssetType][]models.Holding, len(models.AssetTypes)),
		Accounts:      []string{},
	}
	for _, a := range models.AssetTypes {
		o.ByAssetType[a] = []models.Holding{}
	}

	seen := map[string]bool{}
	for _, h := range all {
		o.ByAssetType[h.AssetType] = append(o.ByAssetType[h.AssetType], h)
		if h.AccountName != "" && !seen[h.AccountName] {
			seen[h.AccountName] = true
			o.Accounts = append(o.Accounts, h.AccountName)
		}
	}
	sort.Strings(o.Accounts)
	return o, nil
}

// GetPortfolio prices every holding and summarizes the result.
func (s *Service) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	holdings, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}

	enriched := s.valuation.Enrich(ctx, holdings)
	return &models.Portfolio{
		Holdings: enriched,
		Summary:  s.valuation.Summarize(enriched),
		Count:    len(enriched),
	}, nil
}

// TakeSnapshot records today's portfolio summary. Without force it returns
// early when today's snapshot exists, before pricing anything.
func (s *Service) TakeSnapshot(ctx context.Context, force bool) (*models.SnapshotResult, error) {
	if !force {
		exists, err := s.snapshots.HasSnapshotToday(ctx)
		if err != nil {
			return nil, err
		}
		if exists {
			return &models.SnapshotResult{AlreadyExists: true, Reason: "snapshot already taken today"}, nil
		}
	}

	portfolio, err := s.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	if portfolio.Count == 0 {
		s.logger.Info().Msg("No holdings to snapshot")
		return &models.SnapshotResult{Skipped: true, Reason: "no holdings to snapshot"}, nil
	}

	return s.snapshots.SaveSnapshot(ctx, portfolio.Summary, force)
}

func (s *Service) Performance(ctx context.Context) (*models.Performance, error) {
	return s.snapshots.GetPerformance(ctx)
}

func (s *Service) Snapshots(ctx context.Context, days int) ([]models.Snapshot, error) {
	return s.snapshots.GetSnapshots(ctx, days)
}

// HistoryChart renders the value history PNG and stores a copy under charts/.
func (s *Service) HistoryChart(ctx context.Context, days int) ([]byte, error) {
	png, err := s.snapshots.RenderHistoryChart(ctx, days)
	if err != nil {
		return nil, err
	}

	if s.raw != nil {
		key := fmt.Sprintf("history-%dd.png", days)
		if err := s.raw.WriteRaw(chartsDir, key, png); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist history chart")
		}
	}
	return png, nil
}

// Ensure Service implements PortfolioService
var _ interfaces.PortfolioService = (*Service)(nil)
