// Package storage selects the record-store backend for holdings,
// snapshots, watchlist and settings.
package storage

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/filestore"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
)

// NewStorageManager creates the StorageManager named by config.Storage.Backend.
// Supported backends: "file" (default), "surrealdb".
func NewStorageManager(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendFile:
		return filestore.NewManager(logger, config.Storage.Path)
	case BackendSurrealDB:
		return surrealdb.NewManager(logger, config)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", backend)
	}
}
