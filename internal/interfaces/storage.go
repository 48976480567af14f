// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/folio/internal/models"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates the record stores
type StorageManager interface {
	HoldingStore() HoldingStore
	SnapshotStore() SnapshotStore
	WatchlistStore() WatchlistStore
	KeyValueStore() KeyValueStore

	// DataPath returns the base data directory path (e.g. data/portfolio).
	DataPath() string

	// WriteRaw writes arbitrary binary data to a subdirectory atomically.
	// Key is sanitized for safe filenames (e.g. "history-90d.png").
	WriteRaw(subdir, key string, data []byte) error

	// Lifecycle
	Close() error
}

// HoldingStore persists raw holdings keyed by id.
type HoldingStore interface {
	ListHoldings(ctx context.Context) ([]models.Holding, error)
	GetHolding(ctx context.Context, id string) (*models.Holding, error)
	SaveHolding(ctx context.Context, h *models.Holding) error
	DeleteHolding(ctx context.Context, id string) error
}

// SnapshotStore persists one snapshot per calendar day.
type SnapshotStore interface {
	// GetSnapshot returns ErrNotFound when no snapshot exists for date.
	GetSnapshot(ctx context.Context, date string) (*models.Snapshot, error)
	// SaveSnapshot writes or overwrites the snapshot for snap.Date.
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	// ListSnapshots returns every snapshot sorted ascending by date.
	ListSnapshots(ctx context.Context) ([]models.Snapshot, error)
}

// WatchlistStore persists watchlist items keyed by symbol.
type WatchlistStore interface {
	ListItems(ctx context.Context) ([]models.WatchlistItem, error)
	GetItem(ctx context.Context, symbol string) (*models.WatchlistItem, error)
	SaveItem(ctx context.Context, item *models.WatchlistItem) error
	DeleteItem(ctx context.Context, symbol string) error
}

// KeyValueStore holds small settings such as the PIN hash.
type KeyValueStore interface {
	// Get returns ErrNotFound when key is unset.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
