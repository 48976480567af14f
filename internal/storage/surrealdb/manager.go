// Package surrealdb implements the record stores on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/filestore"
	"github.com/surrealdb/surrealdb.go"
)

// Tables used by the stores.
const (
	tableHolding   = "holding"
	tableSnapshot  = "portfolio_snapshot"
	tableWatchlist = "watchlist"
	tableSetting   = "setting"
)

var tables = []string{tableHolding, tableSnapshot, tableWatchlist, tableSetting}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger
	raw    *filestore.Store

	holdings  *HoldingStore
	snapshots *SnapshotStore
	watchlist *WatchlistStore
	kv        *KeyValueStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	// Connect to SurrealDB
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		return nil, err
	}

	// Charts and other binary output still go to local disk
	dataPath := config.Storage.Path
	if dataPath == "" {
		dataPath = filepath.Join("data", "portfolio")
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	raw, err := filestore.New(logger, dataPath)
	if err != nil {
		return nil, err
	}

	m := newManager(db, logger, raw)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger, raw *filestore.Store) *Manager {
	return &Manager{
		db:        db,
		logger:    logger,
		raw:       raw,
		holdings:  NewHoldingStore(db, logger),
		snapshots: NewSnapshotStore(db, logger),
		watchlist: NewWatchlistStore(db, logger),
		kv:        NewKeyValueStore(db, logger),
	}
}

// defineTables ensures every table exists (SurrealDB v3 errors on querying
// non-existent tables).
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
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
	return m.raw.Path()
}

func (m *Manager) WriteRaw(subdir, key string, data []byte) error {
	return m.raw.WriteRaw(subdir, key, data)
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError reports whether a SurrealDB error means the record is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
