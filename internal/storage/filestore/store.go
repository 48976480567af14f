// Package filestore implements atomic JSON document storage on the local
// filesystem. It backs the file record stores and the tiered cache.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// ErrEmpty is returned when a document exists but has no content.
var ErrEmpty = errors.New("is empty")

// Store reads and writes JSON documents under a base directory. Documents
// are addressed by (subdir, key); an empty subdir means the base directory.
type Store struct {
	basePath string
	logger   *common.Logger
}

// New creates the base directory if needed and returns a Store rooted there.
func New(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Msg("FileStore opened")
	return &Store{basePath: path, logger: logger}, nil
}

// Path returns the base directory.
func (s *Store) Path() string {
	return s.basePath
}

// SanitizeKey makes a key safe for use as a filename.
// Replaces /, \, : with _ and collapses ".." to "_" to prevent path traversal.
// Preserves single dots (safe in filenames, common in tickers like BRK.B).
func SanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	key = r.Replace(key)
	if key == "." {
		return "_"
	}
	return key
}

func (s *Store) dir(subdir string) string {
	if subdir == "" {
		return s.basePath
	}
	return filepath.Join(s.basePath, SanitizeKey(subdir))
}

func (s *Store) filePath(subdir, key string) string {
	return filepath.Join(s.dir(subdir), SanitizeKey(key)+".json")
}

// ReadJSON reads and unmarshals a document. A missing document returns an
// error wrapping interfaces.ErrNotFound; an empty one wraps ErrEmpty.
func (s *Store) ReadJSON(subdir, key string, dest any) error {
	path := s.filePath(subdir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s' %w", key, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("'%s' %w", key, ErrEmpty)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// WriteJSON marshals v to indented JSON and writes it atomically.
func (s *Store) WriteJSON(subdir, key string, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return s.writeAtomic(s.dir(subdir), SanitizeKey(key)+".json", jsonData)
}

// WriteRaw writes arbitrary binary data atomically using temp file + rename.
// The key is sanitized for safe filenames (e.g. "history-90d.png").
func (s *Store) WriteRaw(subdir, key string, data []byte) error {
	return s.writeAtomic(s.dir(subdir), SanitizeKey(key), data)
}

func (s *Store) writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	target := filepath.Join(dir, name)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// DeleteJSON removes a document. Removing a missing document is not an error.
func (s *Store) DeleteJSON(subdir, key string) error {
	if err := os.Remove(s.filePath(subdir, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete '%s': %w", key, err)
	}
	return nil
}

// Exists reports whether a document is present.
func (s *Store) Exists(subdir, key string) bool {
	_, err := os.Stat(s.filePath(subdir, key))
	return err == nil
}

// ListKeys returns the document keys in subdir, sorted, skipping temp files.
func (s *Store) ListKeys(subdir string) ([]string, error) {
	dir := s.dir(subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// ListDirs returns the subdirectories of the base directory, sorted.
func (s *Store) ListDirs() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", s.basePath, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// RemoveDir deletes subdir and everything in it.
func (s *Store) RemoveDir(subdir string) error {
	dir := s.dir(subdir)
	if subdir == "" || filepath.Clean(dir) == filepath.Clean(s.basePath) {
		return errors.New("refusing to remove the store root")
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", subdir, err)
	}
	return nil
}

// Purge removes every subdirectory and document under the base directory
// and returns how many top-level entries were removed.
func (s *Store) Purge() (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read directory %s: %w", s.basePath, err)
	}
	count := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.basePath, e.Name())); err != nil {
			return count, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}
