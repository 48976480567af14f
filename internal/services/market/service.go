// Package market serves company research assembled from cached provider data
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// ErrInsightsUnavailable is returned when no commentary model is configured.
var ErrInsightsUnavailable = errors.New("insights are not configured")

// ResourceCache is the part of the tiered cache the market service reads.
type ResourceCache interface {
	Get(ctx context.Context, resource, symbol string, opts ...cache.GetOption) (*cache.Result, error)
}

// Service implements MarketService
type Service struct {
	cache  ResourceCache
	gemini interfaces.GeminiClient
	logger *common.Logger
}

// NewService creates a new market service. gemini may be nil, which
// disables Insights.
func NewService(c ResourceCache, gemini interfaces.GeminiClient, logger *common.Logger) *Service {
	return &Service{
		cache:  c,
		gemini: gemini,
		logger: logger,
	}
}

// secondaryResources degrade to empty sections when unavailable.
var secondaryResources = []string{
	models.ResourceIncomeQuarterly,
	models.ResourceBalanceSheet,
	models.ResourceCashFlow,
	models.ResourceEarnings,
	models.ResourceProductSegments,
	models.ResourceGeoSegments,
}

// CompanyOverview reads the profile and every secondary resource in
// parallel. A missing profile fails the whole overview.
func (s *Service) CompanyOverview(ctx context.Context, symbol string) (*models.CompanyOverview, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		payloads = make(map[string]json.RawMessage, len(secondaryResources))
		degraded []string
	)

	for _, resource := range secondaryResources {
		wg.Add(1)
		go func(resource string) {
			defer wg.Done()
			res, err := s.cache.Get(ctx, resource, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Debug().Str("symbol", symbol).Str("resource", resource).Err(err).Msg("Overview section unavailable")
				degraded = append(degraded, resource)
				return
			}
			payloads[resource] = res.Data
		}(resource)
	}

	profileRes, profileErr := s.cache.Get(ctx, models.ResourceProfile, symbol)
	wg.Wait()

	if profileErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrTickerNotFound, symbol, profileErr)
	}
	profile, err := common.DecodePayload(profileRes.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile for %s: %w", symbol, err)
	}

	o := &models.CompanyOverview{
		Symbol:  symbol,
		Profile: buildProfile(symbol, profile),
		Price:   buildPrice(profile),
		RevenuePillars: models.RevenuePillars{
			Products:    []models.RevenuePillar{},
			Geographies: []models.RevenuePillar{},
		},
	}

	sections := []struct {
		resource string
		apply    func(json.RawMessage) error
	}{
		{models.ResourceIncomeQuarterly, func(raw json.RawMessage) error {
			q, err := buildQuarter(raw)
			if err == nil {
				o.LatestQuarter = q
			}
			return err
		}},
		{models.ResourceBalanceSheet, func(raw json.RawMessage) error {
			p, err := common.DecodePayload(raw)
			if err == nil {
				o.BalanceSheet = buildBalanceSheet(p)
			}
			return err
		}},
		{models.ResourceCashFlow, func(raw json.RawMessage) error {
			p, err := common.DecodePayload(raw)
			if err == nil {
				o.CashFlow = buildCashFlow(p)
			}
			return err
		}},
		{models.ResourceEarnings, func(raw json.RawMessage) error {
			e, err := buildEarnings(raw)
			if err == nil {
				o.Earnings = e
			}
			return err
		}},
		{models.ResourceProductSegments, func(raw json.RawMessage) error {
			pillars, err := buildPillars(raw, false)
			if err == nil {
				o.RevenuePillars.Products = pillars
			}
			return err
		}},
		{models.ResourceGeoSegments, func(raw json.RawMessage) error {
			pillars, err := buildPillars(raw, true)
			if err == nil {
				o.RevenuePillars.Geographies = pillars
			}
			return err
		}},
	}

	for _, sec := range sections {
		raw, ok := payloads[sec.resource]
		if !ok {
			continue
		}
		if err := sec.apply(raw); err != nil {
			s.logger.Warn().Str("symbol", symbol).Str("resource", sec.resource).Err(err).Msg("Overview section unparseable")
			degraded = append(degraded, sec.resource)
		}
	}

	sort.Strings(degraded)
	o.Degraded = degraded
	return o, nil
}

// Ensure Service implements MarketService
var _ interfaces.MarketService = (*Service)(nil)
