package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Records wrap the domain document so the document's own "id" field never
// collides with the SurrealDB record id.

type holdingRecord struct {
	HoldingID string         `json:"holding_id"`
	Holding   models.Holding `json:"holding"`
}

type snapshotRecord struct {
	Date     string          `json:"date"`
	Snapshot models.Snapshot `json:"snapshot"`
}

type watchlistRecord struct {
	Symbol string               `json:"symbol"`
	Item   models.WatchlistItem `json:"item"`
}

type settingRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// upsert writes record under table:id, retrying transient failures.
func upsert[T any](ctx context.Context, db *surrealdb.DB, table, id string, record T) error {
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID(table, id),
		"record": record,
	}

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err = surrealdb.Query[[]T](ctx, db, sql, vars); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to save %s after retries: %w", table, err)
}

// selectAll runs a SELECT and returns the first statement's rows.
func selectAll[T any](ctx context.Context, db *surrealdb.DB, sql string) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, nil)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// HoldingStore persists holdings in the holding table.
type HoldingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewHoldingStore(db *surrealdb.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{db: db, logger: logger}
}

func (s *HoldingStore) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	records, err := selectAll[holdingRecord](ctx, s.db, "SELECT * FROM "+tableHolding)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	out := make([]models.Holding, 0, len(records))
	for _, r := range records {
		out = append(out, r.Holding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *HoldingStore) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	r, err := surrealdb.Select[holdingRecord](ctx, s.db, surrealmodels.NewRecordID(tableHolding, id))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to select holding: %w", err)
	}
	if r == nil || r.HoldingID == "" {
		return nil, fmt.Errorf("holding '%s' %w", id, interfaces.ErrNotFound)
	}
	return &r.Holding, nil
}

func (s *HoldingStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	if h.ID == "" {
		return errors.New("holding id is required")
	}
	return upsert(ctx, s.db, tableHolding, h.ID, holdingRecord{HoldingID: h.ID, Holding: *h})
}

func (s *HoldingStore) DeleteHolding(ctx context.Context, id string) error {
	if _, err := s.GetHolding(ctx, id); err != nil {
		return err
	}
	if _, err := surrealdb.Delete[holdingRecord](ctx, s.db, surrealmodels.NewRecordID(tableHolding, id)); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// SnapshotStore persists one record per calendar day, keyed by date.
type SnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSnapshotStore(db *surrealdb.DB, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, date string) (*models.Snapshot, error) {
	r, err := surrealdb.Select[snapshotRecord](ctx, s.db, surrealmodels.NewRecordID(tableSnapshot, date))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to select snapshot: %w", err)
	}
	if r == nil || r.Date == "" {
		return nil, fmt.Errorf("snapshot '%s' %w", date, interfaces.ErrNotFound)
	}
	return &r.Snapshot, nil
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.Date == "" {
		return errors.New("snapshot date is required")
	}
	return upsert(ctx, s.db, tableSnapshot, snap.Date, snapshotRecord{Date: snap.Date, Snapshot: *snap})
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	records, err := selectAll[snapshotRecord](ctx, s.db, "SELECT * FROM "+tableSnapshot+" ORDER BY date ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	out := make([]models.Snapshot, 0, len(records))
	for _, r := range records {
		out = append(out, r.Snapshot)
	}
	return out, nil
}

// WatchlistStore persists watchlist items keyed by upper-case symbol.
type WatchlistStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewWatchlistStore(db *surrealdb.DB, logger *common.Logger) *WatchlistStore {
	return &WatchlistStore{db: db, logger: logger}
}

func (s *WatchlistStore) ListItems(ctx context.Context) ([]models.WatchlistItem, error) {
	records, err := selectAll[watchlistRecord](ctx, s.db, "SELECT * FROM "+tableWatchlist+" ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	out := make([]models.WatchlistItem, 0, len(records))
	for _, r := range records {
		out = append(out, r.Item)
	}
	return out, nil
}

func (s *WatchlistStore) GetItem(ctx context.Context, symbol string) (*models.WatchlistItem, error) {
	symbol = strings.ToUpper(symbol)
	r, err := surrealdb.Select[watchlistRecord](ctx, s.db, surrealmodels.NewRecordID(tableWatchlist, symbol))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to select watchlist item: %w", err)
	}
	if r == nil || r.Symbol == "" {
		return nil, fmt.Errorf("watchlist item '%s' %w", symbol, interfaces.ErrNotFound)
	}
	return &r.Item, nil
}

func (s *WatchlistStore) SaveItem(ctx context.Context, item *models.WatchlistItem) error {
	symbol := strings.ToUpper(item.Symbol)
	return upsert(ctx, s.db, tableWatchlist, symbol, watchlistRecord{Symbol: symbol, Item: *item})
}

func (s *WatchlistStore) DeleteItem(ctx context.Context, symbol string) error {
	if _, err := s.GetItem(ctx, symbol); err != nil {
		return err
	}
	rid := surrealmodels.NewRecordID(tableWatchlist, strings.ToUpper(symbol))
	if _, err := surrealdb.Delete[watchlistRecord](ctx, s.db, rid); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}
	return nil
}

// KeyValueStore persists settings in the setting table.
type KeyValueStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewKeyValueStore(db *surrealdb.DB, logger *common.Logger) *KeyValueStore {
	return &KeyValueStore{db: db, logger: logger}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	r, err := surrealdb.Select[settingRecord](ctx, s.db, surrealmodels.NewRecordID(tableSetting, key))
	if err != nil && !isNotFoundError(err) {
		return "", fmt.Errorf("failed to select setting: %w", err)
	}
	if r == nil || r.Key == "" {
		return "", fmt.Errorf("setting '%s' %w", key, interfaces.ErrNotFound)
	}
	return r.Value, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	return upsert(ctx, s.db, tableSetting, key, settingRecord{Key: key, Value: value})
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	if _, err := surrealdb.Delete[settingRecord](ctx, s.db, surrealmodels.NewRecordID(tableSetting, key)); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

var (
	_ interfaces.HoldingStore   = (*HoldingStore)(nil)
	_ interfaces.SnapshotStore  = (*SnapshotStore)(nil)
	_ interfaces.WatchlistStore = (*WatchlistStore)(nil)
	_ interfaces.KeyValueStore  = (*KeyValueStore)(nil)
)
