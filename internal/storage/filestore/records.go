package filestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Document keys under the record store base path.
const (
	portfolioKey = "portfolio"
	snapshotsKey = "snapshots"
	watchlistKey = "watchlist"
	settingsKey  = "settings"
)

// portfolioDoc is the on-disk shape of portfolio.json.
type portfolioDoc struct {
	Holdings map[string]models.Holding `json:"holdings"`
}

// HoldingStore keeps every holding in a single portfolio.json document.
type HoldingStore struct {
	store *Store
	mu    sync.Mutex
}

func NewHoldingStore(store *Store) *HoldingStore {
	return &HoldingStore{store: store}
}

func (s *HoldingStore) load() (*portfolioDoc, error) {
	doc := &portfolioDoc{}
	if err := s.store.ReadJSON("", portfolioKey, doc); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, ErrEmpty) {
			return &portfolioDoc{Holdings: map[string]models.Holding{}}, nil
		}
		return nil, err
	}
	if doc.Holdings == nil {
		doc.Holdings = map[string]models.Holding{}
	}
	return doc, nil
}

func (s *HoldingStore) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Holding, 0, len(doc.Holdings))
	for _, h := range doc.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *HoldingStore) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	h, ok := doc.Holdings[id]
	if !ok {
		return nil, fmt.Errorf("holding '%s' %w", id, interfaces.ErrNotFound)
	}
	return &h, nil
}

// SaveHolding inserts or replaces the holding with h.ID.
func (s *HoldingStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	if h.ID == "" {
		return errors.New("holding id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Holdings[h.ID] = *h
	return s.store.WriteJSON("", portfolioKey, doc)
}

func (s *HoldingStore) DeleteHolding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Holdings[id]; !ok {
		return fmt.Errorf("holding '%s' %w", id, interfaces.ErrNotFound)
	}
	delete(doc.Holdings, id)
	return s.store.WriteJSON("", portfolioKey, doc)
}

// SnapshotStore keeps the day-indexed snapshot collection in snapshots.json.
// An unreadable document is treated as an empty collection.
type SnapshotStore struct {
	store  *Store
	logger *common.Logger
	mu     sync.Mutex
}

func NewSnapshotStore(store *Store, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{store: store, logger: logger}
}

func (s *SnapshotStore) load() map[string]models.Snapshot {
	snaps := map[string]models.Snapshot{}
	if err := s.store.ReadJSON("", snapshotsKey, &snaps); err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Snapshot collection unreadable, treating as empty")
		}
		return map[string]models.Snapshot{}
	}
	return snaps
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, date string) (*models.Snapshot, error) {
	snap, ok := s.load()[date]
	if !ok {
		return nil, fmt.Errorf("snapshot '%s' %w", date, interfaces.ErrNotFound)
	}
	return &snap, nil
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.Date == "" {
		return errors.New("snapshot date is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.load()
	snaps[snap.Date] = *snap
	return s.store.WriteJSON("", snapshotsKey, snaps)
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	snaps := s.load()
	out := make([]models.Snapshot, 0, len(snaps))
	for date, snap := range snaps {
		if snap.Date == "" {
			snap.Date = date
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// WatchlistStore keeps watchlist items keyed by symbol in watchlist.json.
type WatchlistStore struct {
	store *Store
	mu    sync.Mutex
}

func NewWatchlistStore(store *Store) *WatchlistStore {
	return &WatchlistStore{store: store}
}

func (s *WatchlistStore) load() (map[string]models.WatchlistItem, error) {
	items := map[string]models.WatchlistItem{}
	if err := s.store.ReadJSON("", watchlistKey, &items); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, ErrEmpty) {
			return map[string]models.WatchlistItem{}, nil
		}
		return nil, err
	}
	return items, nil
}

func (s *WatchlistStore) ListItems(ctx context.Context) ([]models.WatchlistItem, error) {
	items, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.WatchlistItem, 0, len(items))
	for symbol, item := range items {
		item.Symbol = symbol
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *WatchlistStore) GetItem(ctx context.Context, symbol string) (*models.WatchlistItem, error) {
	items, err := s.load()
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	item, ok := items[symbol]
	if !ok {
		return nil, fmt.Errorf("watchlist item '%s' %w", symbol, interfaces.ErrNotFound)
	}
	item.Symbol = symbol
	return &item, nil
}

func (s *WatchlistStore) SaveItem(ctx context.Context, item *models.WatchlistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	items[strings.ToUpper(item.Symbol)] = *item
	return s.store.WriteJSON("", watchlistKey, items)
}

func (s *WatchlistStore) DeleteItem(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)
	if _, ok := items[symbol]; !ok {
		return fmt.Errorf("watchlist item '%s' %w", symbol, interfaces.ErrNotFound)
	}
	delete(items, symbol)
	return s.store.WriteJSON("", watchlistKey, items)
}

// KeyValueStore keeps settings in settings.json.
type KeyValueStore struct {
	store *Store
	mu    sync.Mutex
}

func NewKeyValueStore(store *Store) *KeyValueStore {
	return &KeyValueStore{store: store}
}

func (s *KeyValueStore) load() (map[string]string, error) {
	kv := map[string]string{}
	if err := s.store.ReadJSON("", settingsKey, &kv); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, ErrEmpty) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return kv, nil
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	kv, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := kv[key]
	if !ok {
		return "", fmt.Errorf("setting '%s' %w", key, interfaces.ErrNotFound)
	}
	return v, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if err != nil {
		return err
	}
	kv[key] = value
	return s.store.WriteJSON("", settingsKey, kv)
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := kv[key]; !ok {
		return nil
	}
	delete(kv, key)
	return s.store.WriteJSON("", settingsKey, kv)
}

var (
	_ interfaces.HoldingStore   = (*HoldingStore)(nil)
	_ interfaces.SnapshotStore  = (*SnapshotStore)(nil)
	_ interfaces.WatchlistStore = (*WatchlistStore)(nil)
	_ interfaces.KeyValueStore  = (*KeyValueStore)(nil)
)
