package filestore

import (
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// Manager implements interfaces.StorageManager with JSON documents on disk.
type Manager struct {
	store  *Store
	logger *common.Logger

	holdings  *HoldingStore
	snapshots *SnapshotStore
	watchlist *WatchlistStore
	kv        *KeyValueStore
}

// NewManager opens the record stores under path.
func NewManager(logger *common.Logger, path string) (*Manager, error) {
	store, err := New(logger, path)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("File storage manager initialized")

	return &Manager{
		store:     store,
		logger:    logger,
		holdings:  NewHoldingStore(store),
		snapshots: NewSnapshotStore(store, logger),
		watchlist: NewWatchlistStore(store),
		kv:        NewKeyValueStore(store),
	}, nil
}

func (m *Manager) HoldingStore() interfaces.HoldingStore {
	return m.holdings
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.snapshots
}

func (m *Manager) WatchlistStore() interfaces.WatchlistStore {
	return m.watchlist
}

func (m *Manager) KeyValueStore() interfaces.KeyValueStore {
	return m.kv
}

func (m *Manager) DataPath() string {
	return m.store.Path()
}

func (m *Manager) WriteRaw(subdir, key string, data []byte) error {
	return m.store.WriteRaw(subdir, key, data)
}

// Close is a no-op for file-based storage.
func (m *Manager) Close() error {
	return nil
}

var _ interfaces.StorageManager = (*Manager)(nil)
