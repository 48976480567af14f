// Package quote shapes cached provider payloads into typed quotes
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// strikeTolerance is how far a chain strike may sit from the holding's strike.
const strikeTolerance = 0.01

// ResourceCache is the part of the tiered cache the quote service reads.
type ResourceCache interface {
	Get(ctx context.Context, resource, symbol string, opts ...cache.GetOption) (*cache.Result, error)
	GetBatch(ctx context.Context, resource string, keys []string, opts ...cache.GetOption) (map[string]json.RawMessage, error)
}

// Service implements QuoteService on top of the tiered cache.
type Service struct {
	cache          ResourceCache
	logger         *common.Logger
	optionsEnabled bool
}

// NewService creates a new quote service. With optionsEnabled false no
// option chain is ever requested and options stay unpriced.
func NewService(c ResourceCache, logger *common.Logger, optionsEnabled bool) *Service {
	return &Service{
		cache:          c,
		logger:         logger,
		optionsEnabled: optionsEnabled,
	}
}

// EquityQuote reads the cached company profile for symbol.
func (s *Service) EquityQuote(ctx context.Context, symbol string) (*models.EquityQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res, err := s.cache.Get(ctx, models.ResourceProfile, symbol)
	if err != nil {
		return nil, err
	}
	return parseProfile(symbol, res.Data)
}

func parseProfile(symbol string, raw json.RawMessage) (*models.EquityQuote, error) {
	p, err := common.DecodePayload(raw)
	if err != nil {
		return nil, err
	}
	price, ok := p.Float("$.price")
	if !ok {
		return nil, fmt.Errorf("profile for %s has no price", symbol)
	}
	return &models.EquityQuote{
		Symbol:      symbol,
		Price:       price,
		CompanyName: p.String("$.companyName"),
		Image:       p.String("$.image"),
		Industry:    p.String("$.industry"),
		Currency:    p.String("$.currency"),
	}, nil
}

// CryptoQuotes prices tickers through the batched crypto_prices resource.
func (s *Service) CryptoQuotes(ctx context.Context, tickers []string) (map[string]models.CryptoQuote, error) {
	out := make(map[string]models.CryptoQuote, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}

	raw, err := s.cache.GetBatch(ctx, models.ResourceCryptoPrices, tickers)
	if err != nil {
		return nil, err
	}

	for ticker, data := range raw {
		var q models.CryptoQuote
		if err := json.Unmarshal(data, &q); err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Unreadable crypto quote, skipping")
			continue
		}
		if q.Ticker == "" {
			q.Ticker = ticker
		}
		out[ticker] = q
	}
	return out, nil
}

// chainContract is the subset of a chain row used for matching. Kept
// separate from models.OptionContract so one odd row cannot fail the chain.
type chainContract struct {
	OptionType string   `json:"option_type"`
	Strike     float64  `json:"strike"`
	Last       *float64 `json:"last"`
	Bid        *float64 `json:"bid"`
	Ask        *float64 `json:"ask"`
}

// contractPrice prefers the last trade, then the bid/ask midpoint rounded
// to cents. It reports false when neither is usable.
func contractPrice(c chainContract) (float64, bool) {
	if c.Last != nil && *c.Last > 0 {
		return *c.Last, true
	}
	if c.Bid != nil && c.Ask != nil && *c.Bid > 0 && *c.Ask > 0 {
		mid := decimal.NewFromFloat(*c.Bid).Add(decimal.NewFromFloat(*c.Ask)).Div(decimal.NewFromInt(2)).Round(2)
		return mid.InexactFloat64(), true
	}
	return 0, false
}

// matchContract finds the contract with the same type and strike.
func matchContract(chain []chainContract, key models.OptionQuoteKey) (float64, bool) {
	for _, c := range chain {
		if !strings.EqualFold(c.OptionType, string(key.OptionType)) {
			continue
		}
		if math.Abs(c.Strike-key.Strike) >= strikeTolerance {
			continue
		}
		return contractPrice(c)
	}
	return 0, false
}

type chainGroup struct {
	underlying string
	expiration string
}

// OptionPrices resolves premiums with one chain lookup per underlying and
// expiration. Chains are fetched concurrently; a failed chain leaves its
// contracts unpriced without affecting the others.
func (s *Service) OptionPrices(ctx context.Context, keys []models.OptionQuoteKey) (map[models.OptionQuoteKey]float64, error) {
	out := make(map[models.OptionQuoteKey]float64, len(keys))
	if !s.optionsEnabled || len(keys) == 0 {
		return out, nil
	}

	groups := make(map[chainGroup][]models.OptionQuoteKey)
	for _, k := range keys {
		if k.Underlying == "" || k.Expiration == "" {
			continue
		}
		g := chainGroup{underlying: strings.ToUpper(k.Underlying), expiration: k.Expiration}
		groups[g] = append(groups[g], k)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for g, members := range groups {
		wg.Add(1)
		go func(g chainGroup, members []models.OptionQuoteKey) {
			defer wg.Done()

			res, err := s.cache.Get(ctx, models.OptionChainResource(g.expiration), g.underlying)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("underlying", g.underlying).
					Str("expiration", g.expiration).
					Msg("Option chain unavailable")
				return
			}

			var chain []chainContract
			if err := json.Unmarshal(res.Data, &chain); err != nil {
				s.logger.Warn().Err(err).Str("underlying", g.underlying).Msg("Unreadable option chain")
				return
			}

			for _, k := range members {
				if price, ok := matchContract(chain, k); ok {
					mu.Lock()
					out[k] = price
					mu.Unlock()
				}
			}
		}(g, members)
	}
	wg.Wait()

	return out, nil
}

// Ensure Service implements QuoteService
var _ interfaces.QuoteService = (*Service)(nil)
