// Package valuation prices holdings and aggregates them by asset type
package valuation

import (
	"context"
	"strings"
	"sync"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// DefaultConcurrency bounds concurrent profile lookups.
const DefaultConcurrency = 8

// Price sources reported on enriched holdings.
const (
	SourceProfile          = "profile"
	SourceCrypto           = "crypto"
	SourceOptionChain      = "option_chain"
	SourceLastKnownPremium = "last_known_premium"
	SourceCostBasis        = "cost_basis"
)

// Service implements ValuationService
type Service struct {
	quotes      interfaces.QuoteService
	logger      *common.Logger
	concurrency int
}

// NewService creates a valuation service. concurrency <= 0 uses DefaultConcurrency.
func NewService(quotes interfaces.QuoteService, logger *common.Logger, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		quotes:      quotes,
		logger:      logger,
		concurrency: concurrency,
	}
}

// prices collects every lookup result for one Enrich call.
type prices struct {
	equities map[string]*models.EquityQuote
	cryptos  map[string]models.CryptoQuote
	options  map[models.OptionQuoteKey]float64
}

// Enrich prices every holding. The result has the same order as the input.
// Equity and fund profiles are fetched concurrently, crypto in one batch and
// options once per chain. A failed lookup leaves only the affected holdings
// unpriced.
func (s *Service) Enrich(ctx context.Context, holdings []models.Holding) []models.EnrichedHolding {
	var equitySymbols, cryptoTickers []string
	var optionKeys []models.OptionQuoteKey
	seenEquity := map[string]bool{}
	seenCrypto := map[string]bool{}

	for i := range holdings {
		h := &holdings[i]
		ticker := strings.ToUpper(strings.TrimSpace(h.Ticker))
		switch h.AssetType {
		case models.AssetTypeEquity, models.AssetTypeFund:
			if !seenEquity[ticker] {
				seenEquity[ticker] = true
				equitySymbols = append(equitySymbols, ticker)
			}
		case models.AssetTypeCrypto:
			if !seenCrypto[ticker] {
				seenCrypto[ticker] = true
				cryptoTickers = append(cryptoTickers, ticker)
			}
		case models.AssetTypeOption:
			if h.OptionFields != nil {
				optionKeys = append(optionKeys, h.OptionFields.Key())
			}
		}
	}

	p := prices{
		equities: make(map[string]*models.EquityQuote, len(equitySymbols)),
	}

	var wg sync.WaitGroup
	if len(cryptoTickers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes, err := s.quotes.CryptoQuotes(ctx, cryptoTickers)
			if err != nil {
				s.logger.Warn().Err(err).Int("tickers", len(cryptoTickers)).Msg("Crypto prices unavailable")
				return
			}
			p.cryptos = quotes
		}()
	}
	if len(optionKeys) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			premiums, err := s.quotes.OptionPrices(ctx, optionKeys)
			if err != nil {
				s.logger.Warn().Err(err).Int("contracts", len(optionKeys)).Msg("Option prices unavailable")
				return
			}
			p.options = premiums
		}()
	}

	sem := make(chan struct{}, s.concurrency)
	var mu sync.Mutex
	for _, symbol := range equitySymbols {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			q, err := s.quotes.EquityQuote(ctx, symbol)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Price lookup failed, holding left unpriced")
				return
			}
			mu.Lock()
			p.equities[symbol] = q
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	out := make([]models.EnrichedHolding, len(holdings))
	for i, h := range holdings {
		out[i] = s.enrichOne(h, &p)
	}
	return out
}

func (s *Service) enrichOne(h models.Holding, p *prices) models.EnrichedHolding {
	ticker := strings.ToUpper(strings.TrimSpace(h.Ticker))
	e := models.EnrichedHolding{Holding: h}

	var price *float64
	switch h.AssetType {
	case models.AssetTypeEquity, models.AssetTypeFund:
		if q, ok := p.equities[ticker]; ok && q != nil {
			price = common.Float64Ptr(q.Price)
			e.PriceSource = SourceProfile
			e.Name = q.CompanyName
			e.Image = q.Image
			e.Industry = q.Industry
		}
	case models.AssetTypeCrypto:
		e.Name = ticker
		if q, ok := p.cryptos[ticker]; ok {
			price = common.Float64Ptr(q.Price)
			e.PriceSource = SourceCrypto
		}
	case models.AssetTypeOption:
		if h.OptionFields != nil {
			if premium, ok := p.options[h.OptionFields.Key()]; ok {
				price = common.Float64Ptr(premium)
				e.PriceSource = SourceOptionChain
			} else if h.OptionFields.LastKnownPremium > 0 {
				price = common.Float64Ptr(h.OptionFields.LastKnownPremium)
				e.PriceSource = SourceLastKnownPremium
			}
		}
	case models.AssetTypeCustom:
		price = common.Float64Ptr(h.CostBasis)
		e.PriceSource = SourceCostBasis
		e.Name = h.Ticker
	case models.AssetTypeCash:
		price = common.Float64Ptr(h.CostBasis)
		e.PriceSource = SourceCostBasis
		e.Name = "Cash"
	}

	applyPrice(&e, price)
	return e
}

// applyPrice derives value and gain/loss from price. With no price every
// derived field except TotalCost stays nil.
func applyPrice(e *models.EnrichedHolding, price *float64) {
	mult := e.Multiplier()
	e.TotalCost = e.Quantity * e.CostBasis * mult
	if price == nil {
		return
	}

	value := e.Quantity * *price * mult
	gain := value - e.TotalCost
	pct := 0.0
	if e.TotalCost > 0 {
		pct = gain / e.TotalCost * 100
	}

	e.CurrentPrice = price
	e.CurrentValue = &value
	e.GainLoss = &gain
	e.GainLossPercent = &pct
}

// Summarize aggregates enriched holdings by asset type. Every asset type has
// a bucket. Cash counts toward value but never toward TotalCost.
func (s *Service) Summarize(enriched []models.EnrichedHolding) *models.PortfolioSummary {
	return Summarize(enriched)
}

// Summarize is the pure aggregation behind Service.Summarize.
func Summarize(enriched []models.EnrichedHolding) *models.PortfolioSummary {
	summary := models.NewPortfolioSummary()

	for i := range enriched {
		e := &enriched[i]
		bucket, ok := summary.ByAssetType[e.AssetType]
		if !ok {
			continue
		}

		bucket.Count++
		bucket.Cost += e.TotalCost
		if e.CurrentValue != nil {
			bucket.Value += *e.CurrentValue
			summary.TotalValue += *e.CurrentValue
		}
		if e.GainLoss != nil {
			bucket.GainLoss += *e.GainLoss
			summary.TotalGainLoss += *e.GainLoss
		}
		if e.AssetType != models.AssetTypeCash {
			summary.TotalCost += e.TotalCost
		}
	}

	if summary.TotalCost > 0 {
		summary.TotalGainLossPercent = summary.TotalGainLoss / summary.TotalCost * 100
	}
	return summary
}

// Ensure Service implements ValuationService
var _ interfaces.ValuationService = (*Service)(nil)
