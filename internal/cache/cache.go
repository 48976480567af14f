// Package cache implements the tiered TTL cache in front of the upstream
// resource fetchers. Entries live at <dir>/<SYMBOL>/<resource>.json; each
// resource has its own freshness window and failed refreshes fall back to
// the stale entry when one exists.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/filestore"
)

// ErrNoData is returned when a resource could not be fetched and nothing,
// not even a stale entry, is cached for it.
var ErrNoData = errors.New("no data available")

// ErrInvalidSymbol is returned for symbols that cannot name a cache
// directory.
var ErrInvalidSymbol = fmt.Errorf("%w: invalid symbol", models.ErrValidation)

// errUnusablePayload marks an upstream response that must not be cached.
var errUnusablePayload = errors.New("upstream returned an empty or error payload")

// Source says where a Result came from.
type Source string

const (
	SourceHit     Source = "hit"
	SourceFetched Source = "fetched"
	SourceStale   Source = "stale"
)

// Result is a cached payload with its provenance.
type Result struct {
	Data      json.RawMessage
	FetchedAt time.Time
	Source    Source
}

// Stale reports whether the payload was served after a failed refresh.
func (r *Result) Stale() bool {
	return r.Source == SourceStale
}

// Cache is the tiered TTL cache. It is safe for concurrent use; concurrent
// refreshes of the same key race and the last write wins.
type Cache struct {
	fs      *filestore.Store
	policy  *common.FreshnessPolicy
	logger  *common.Logger
	fetcher interfaces.ResourceFetcher
	batch   interfaces.BatchFetcher
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher sets the default fetcher used on misses.
func WithFetcher(f interfaces.ResourceFetcher) Option {
	return func(c *Cache) {
		c.fetcher = f
	}
}

// WithBatchFetcher sets the fetcher used by GetBatch.
func WithBatchFetcher(f interfaces.BatchFetcher) Option {
	return func(c *Cache) {
		c.batch = f
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache persisting through fs.
func New(fs *filestore.Store, policy *common.FreshnessPolicy, logger *common.Logger, opts ...Option) *Cache {
	if policy == nil {
		policy = common.NewFreshnessPolicy(nil)
	}
	c := &Cache{
		fs:     fs,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the freshness policy in use.
func (c *Cache) Policy() *common.FreshnessPolicy {
	return c.policy
}

type getOptions struct {
	force   bool
	params  map[string]string
	fetcher interfaces.ResourceFetcher
}

// GetOption configures a single Get or GetBatch call.
type GetOption func(*getOptions)

// WithForceRefresh skips the freshness check. A failed forced refresh
// still falls back to the stored entry.
func WithForceRefresh(force bool) GetOption {
	return func(o *getOptions) {
		o.force = force
	}
}

// WithParams passes extra parameters through to the fetcher.
func WithParams(params map[string]string) GetOption {
	return func(o *getOptions) {
		o.params = params
	}
}

// FetchWith replaces the cache's default fetcher for one call. Derived
// resources such as generated commentary use this to share the cache.
func FetchWith(f interfaces.ResourceFetcher) GetOption {
	return func(o *getOptions) {
		o.fetcher = f
	}
}

// symbolKey normalises a symbol into its directory name.
func symbolKey(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case s == "":
		return models.MarketSymbol, nil
	case s == strings.ToUpper(models.MarketSymbol):
		return models.MarketSymbol, nil
	case strings.Trim(s, ".") == "":
		return "", fmt.Errorf("%w %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Get returns the payload for (resource, symbol). A fresh entry is returned
// without calling the fetcher. Otherwise the fetcher is called; on success
// the payload is stored and returned, on failure the stored entry is
// returned regardless of age, and with nothing stored the error wraps
// ErrNoData.
func (c *Cache) Get(ctx context.Context, resource, symbol string, opts ...GetOption) (*Result, error) {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	key, err := symbolKey(symbol)
	if err != nil {
		return nil, err
	}
	now := c.now()

	entry := c.read(key, resource)
	if !o.force && entry != nil && common.IsFreshAt(entry.FetchedAt, now, c.policy.TTL(resource)) {
		c.logger.Debug().Str("symbol", key).Str("resource", resource).Msg("Cache hit")
		return &Result{Data: entry.Data, FetchedAt: entry.FetchedAt, Source: SourceHit}, nil
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = c.fetcher
	}

	var data json.RawMessage
	if fetcher == nil {
		err = errors.New("no fetcher configured")
	} else {
		c.logger.Debug().Str("symbol", key).Str("resource", resource).Bool("force", o.force).Msg("Cache miss, fetching")
		data, err = fetcher.Fetch(ctx, resource, key, o.params)
		if err == nil && !usable(data) {
			err = errUnusablePayload
		}
	}

	if err != nil {
		if entry != nil {
			c.logger.Warn().Err(err).
				Str("symbol", key).
				Str("resource", resource).
				Time("fetched_at", entry.FetchedAt).
				Msg("Fetch failed, serving stale cache entry")
			return &Result{Data: entry.Data, FetchedAt: entry.FetchedAt, Source: SourceStale}, nil
		}
		return nil, fmt.Errorf("%w for %s/%s: %w", ErrNoData, key, resource, err)
	}

	fetchedAt := c.now()
	c.write(&models.CacheEntry{
		Symbol:    key,
		Resource:  resource,
		FetchedAt: fetchedAt,
		TTLDays:   c.policy.TTLDays(resource),
		Data:      data,
	})
	return &Result{Data: data, FetchedAt: fetchedAt, Source: SourceFetched}, nil
}

// GetBatch returns one payload per key for a multi-symbol resource stored
// as a single JSON object under the market directory. Keys present in a
// fresh entry are served from it; only missing keys are fetched, and the
// new keys are merged into the fresh entry instead of replacing it. When
// the fetch fails, stored values are returned regardless of age. Keys with
// no value are absent from the result.
func (c *Cache) GetBatch(ctx context.Context, resource string, keys []string, opts ...GetOption) (map[string]json.RawMessage, error) {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	now := c.now()

	var stored map[string]json.RawMessage
	fresh := false
	if entry := c.read(models.MarketSymbol, resource); entry != nil {
		if err := json.Unmarshal(entry.Data, &stored); err != nil {
			c.logger.Warn().Err(err).Str("resource", resource).Msg("Batch cache entry is not an object, ignoring")
			stored = nil
		} else {
			fresh = common.IsFreshAt(entry.FetchedAt, now, c.policy.TTL(resource))
		}
	}

	result := make(map[string]json.RawMessage, len(keys))
	var missing []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if v, ok := stored[k]; ok && fresh && !o.force {
			result[k] = v
			continue
		}
		missing = append(missing, k)
	}

	if len(missing) == 0 {
		c.logger.Debug().Str("resource", resource).Int("keys", len(result)).Msg("Batch cache hit")
		return result, nil
	}

	var fetched map[string]json.RawMessage
	var err error
	if c.batch == nil {
		err = errors.New("no batch fetcher configured")
	} else {
		fetched, err = c.batch.FetchBatch(ctx, resource, missing)
	}

	if err != nil {
		staleCount := 0
		for _, k := range missing {
			if v, ok := stored[k]; ok {
				result[k] = v
				staleCount++
			}
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("%w for %s/%s: %w", ErrNoData, models.MarketSymbol, resource, err)
		}
		c.logger.Warn().Err(err).
			Str("resource", resource).
			Int("stale", staleCount).
			Int("missing", len(missing)-staleCount).
			Msg("Batch fetch failed, serving cached values")
		return result, nil
	}

	merged := make(map[string]json.RawMessage, len(stored)+len(fetched))
	if fresh {
		for k, v := range stored {
			merged[k] = v
		}
	}
	added := 0
	for k, v := range fetched {
		k = strings.ToUpper(k)
		if !usable(v) {
			continue
		}
		merged[k] = v
		if seen[k] {
			result[k] = v
		}
		added++
	}
	for _, k := range missing {
		if _, ok := result[k]; ok {
			continue
		}
		if v, ok := stored[k]; ok {
			result[k] = v
		}
	}

	if added > 0 {
		data, err := json.Marshal(merged)
		if err != nil {
			c.logger.Warn().Err(err).Str("resource", resource).Msg("Failed to encode batch cache entry")
		} else {
			c.write(&models.CacheEntry{
				Symbol:    models.MarketSymbol,
				Resource:  resource,
				FetchedAt: c.now(),
				TTLDays:   c.policy.TTLDays(resource),
				Data:      data,
			})
		}
	}

	c.logger.Debug().
		Str("resource", resource).
		Int("fetched", added).
		Int("requested", len(missing)).
		Msg("Batch cache refreshed")
	return result, nil
}

// read returns the stored entry, or nil when absent or unreadable.
func (c *Cache) read(symbol, resource string) *models.CacheEntry {
	var entry models.CacheEntry
	if err := c.fs.ReadJSON(symbol, resource, &entry); err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			c.logger.Warn().Err(err).Str("symbol", symbol).Str("resource", resource).Msg("Corrupt cache entry, treating as miss")
		}
		return nil
	}
	if len(entry.Data) == 0 {
		return nil
	}
	return &entry
}

func (c *Cache) write(entry *models.CacheEntry) {
	if err := c.fs.WriteJSON(entry.Symbol, entry.Resource, entry); err != nil {
		c.logger.Warn().Err(err).Str("symbol", entry.Symbol).Str("resource", entry.Resource).Msg("Failed to write cache entry")
		return
	}
	c.logger.Debug().Str("symbol", entry.Symbol).Str("resource", entry.Resource).Msg("Cache entry written")
}

// usable rejects payloads that must not be cached: empty, null, or an
// upstream error object.
func usable(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	if trimmed[0] != '{' {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	for k := range obj {
		if strings.HasPrefix(k, "Error") {
			return false
		}
	}
	return true
}

// Status reports every cached resource for symbol, evaluated against the
// current policy.
func (c *Cache) Status(symbol string) (*models.CacheStatus, error) {
	key, err := symbolKey(symbol)
	if err != nil {
		return nil, err
	}
	resources, err := c.fs.ListKeys(key)
	if err != nil {
		return nil, err
	}
	now := c.now()
	status := &models.CacheStatus{Symbol: key, Resources: []models.ResourceStatus{}}
	for _, resource := range resources {
		entry := c.read(key, resource)
		if entry == nil {
			continue
		}
		ttl := c.policy.TTL(resource)
		status.Resources = append(status.Resources, models.ResourceStatus{
			Resource:  resource,
			FetchedAt: entry.FetchedAt,
			ExpiresAt: entry.FetchedAt.Add(ttl),
			IsFresh:   common.IsFreshAt(entry.FetchedAt, now, ttl),
			TTLDays:   c.policy.TTLDays(resource),
		})
	}
	sort.Slice(status.Resources, func(i, j int) bool {
		return status.Resources[i].Resource < status.Resources[j].Resource
	})
	return status, nil
}

// Invalidate removes one (symbol, resource) entry.
func (c *Cache) Invalidate(symbol, resource string) error {
	key, err := symbolKey(symbol)
	if err != nil {
		return err
	}
	if err := c.fs.DeleteJSON(key, resource); err != nil {
		return err
	}
	c.logger.Info().Str("symbol", key).Str("resource", resource).Msg("Cache entry invalidated")
	return nil
}

// InvalidateSymbol removes every entry for symbol.
func (c *Cache) InvalidateSymbol(symbol string) error {
	key, err := symbolKey(symbol)
	if err != nil {
		return err
	}
	if err := c.fs.RemoveDir(key); err != nil {
		return err
	}
	c.logger.Info().Str("symbol", key).Msg("Cache cleared for symbol")
	return nil
}

// Clear removes the whole cache.
func (c *Cache) Clear() error {
	n, err := c.fs.Purge()
	if err != nil {
		return err
	}
	c.logger.Info().Int("symbols", n).Msg("Cache cleared")
	return nil
}

// RefreshDaily drops the daily resources for symbol (profile and every
// price_history window) so the next read refetches them.
func (c *Cache) RefreshDaily(symbol string) error {
	key, err := symbolKey(symbol)
	if err != nil {
		return err
	}
	resources, err := c.fs.ListKeys(key)
	if err != nil {
		return err
	}
	for _, resource := range resources {
		if resource == models.ResourceProfile ||
			resource == models.ResourcePriceHistory ||
			strings.HasPrefix(resource, models.ResourcePriceHistory+"_") {
			if err := c.fs.DeleteJSON(key, resource); err != nil {
				return err
			}
		}
	}
	c.logger.Info().Str("symbol", key).Msg("Daily cache data cleared")
	return nil
}

var _ interfaces.CacheService = (*Cache)(nil)
