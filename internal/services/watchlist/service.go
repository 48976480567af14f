// Package watchlist provides followed-symbol management services
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// priceConcurrency bounds concurrent quote lookups when listing.
const priceConcurrency = 4

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service implements WatchlistService
type Service struct {
	store  interfaces.WatchlistStore
	quotes interfaces.QuoteService
	logger *common.Logger
	now    func() time.Time
}

// NewService creates a new watchlist service
func NewService(store interfaces.WatchlistStore, quotes interfaces.QuoteService, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		quotes: quotes,
		logger: logger,
		now:    time.Now,
	}
}

// List returns every item newest first, each with its cached profile price.
// A failed lookup leaves that item's price nil.
func (s *Service) List(ctx context.Context) ([]models.WatchlistEntry, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})

	entries := make([]models.WatchlistEntry, len(items))
	sem := make(chan struct{}, priceConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		entries[i] = models.WatchlistEntry{WatchlistItem: item}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(e *models.WatchlistEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			q, err := s.quotes.EquityQuote(ctx, e.Symbol)
			if err != nil {
				s.logger.Debug().Str("symbol", e.Symbol).Err(err).Msg("Watchlist price unavailable")
				return
			}
			e.Price = common.Float64Ptr(q.Price)
			e.CompanyName = q.CompanyName
			e.Image = q.Image
		}(&entries[i])
	}
	wg.Wait()

	for i := range entries {
		if entries[i].Symbol == "" {
			entries[i] = models.WatchlistEntry{WatchlistItem: items[i]}
		}
	}
	return entries, nil
}

// Add follows symbol, or updates its notes when already followed. Empty
// notes leave existing notes unchanged.
func (s *Service) Add(ctx context.Context, symbol, notes string) (*models.WatchlistItem, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}
	now := s.now()

	item, err := s.store.GetItem(ctx, symbol)
	switch {
	case err == nil:
		if notes != "" {
			item.Notes = notes
		}
		item.UpdatedAt = now
	case errors.Is(err, interfaces.ErrNotFound):
		item = &models.WatchlistItem{Symbol: symbol, Notes: notes, AddedAt: now}
	default:
		return nil, fmt.Errorf("failed to read watchlist item: %w", err)
	}

	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save watchlist item: %w", err)
	}
	s.logger.Info().Str("symbol", symbol).Msg("Watchlist item upserted")
	return item, nil
}

// Remove stops following symbol.
func (s *Service) Remove(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.store.DeleteItem(ctx, symbol); err != nil {
		return fmt.Errorf("watchlist %s: %w", symbol, err)
	}
	s.logger.Info().Str("symbol", symbol).Msg("Watchlist item removed")
	return nil
}
