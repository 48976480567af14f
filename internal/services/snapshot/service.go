// Package snapshot stores one portfolio summary per calendar day and
// reports trailing-period performance from them.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	// NearestLookbackDays is how many days before a target date are searched
	// when no snapshot exists on the target itself.
	NearestLookbackDays = 3

	// DefaultHistoryDays is the history window returned with performance.
	DefaultHistoryDays = 90
)

// periodOffsets are trailing windows in days. YTD is handled separately.
var periodOffsets = map[string]int{
	models.Period1W: 7,
	models.Period1M: 30,
	models.Period3M: 90,
}

// Service implements SnapshotService
type Service struct {
	store       interfaces.SnapshotStore
	logger      *common.Logger
	now         func() time.Time
	historyDays int
}

// Option configures the service
type Option func(*Service)

// WithClock sets the clock used for "today"
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithHistoryDays sets the history window returned by GetPerformance
func WithHistoryDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.historyDays = days
		}
	}
}

// NewService creates a snapshot service
func NewService(store interfaces.SnapshotStore, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      logger,
		now:         time.Now,
		historyDays: DefaultHistoryDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

func dateKey(t time.Time) string {
	return t.Format(models.SnapshotDateLayout)
}

// HasSnapshotToday reports whether today's snapshot exists.
func (s *Service) HasSnapshotToday(ctx context.Context) (bool, error) {
	_, err := s.store.GetSnapshot(ctx, dateKey(s.today()))
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveSnapshot records today's summary. An existing snapshot for today is
// returned unchanged with AlreadyExists set, unless force is true.
func (s *Service) SaveSnapshot(ctx context.Context, summary *models.PortfolioSummary, force bool) (*models.SnapshotResult, error) {
	date := dateKey(s.today())

	existing, err := s.store.GetSnapshot(ctx, date)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", date, err)
	}
	if existing != nil && !force {
		s.logger.Debug().Str("date", date).Msg("Snapshot already taken today")
		return &models.SnapshotResult{Snapshot: existing, AlreadyExists: true}, nil
	}

	snap := models.NewSnapshot(date, summary, s.now())
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot %s: %w", date, err)
	}

	s.logger.Info().
		Str("date", date).
		Float64("total_value", snap.TotalValue).
		Bool("overwrote", existing != nil).
		Msg("Portfolio snapshot saved")
	return &models.SnapshotResult{Snapshot: snap}, nil
}

// GetNearest returns the snapshot on target's calendar day or, failing that,
// the closest one up to NearestLookbackDays earlier. It never looks forward.
func (s *Service) GetNearest(ctx context.Context, target time.Time) (*models.Snapshot, error) {
	for i := 0; i <= NearestLookbackDays; i++ {
		date := dateKey(target.AddDate(0, 0, -i))
		snap, err := s.store.GetSnapshot(ctx, date)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no snapshot within %d days before %s: %w", NearestLookbackDays, dateKey(target), interfaces.ErrNotFound)
}

// nearest is GetNearest over an already loaded collection.
func nearest(byDate map[string]*models.Snapshot, target time.Time) *models.Snapshot {
	for i := 0; i <= NearestLookbackDays; i++ {
		if snap, ok := byDate[dateKey(target.AddDate(0, 0, -i))]; ok {
			return snap
		}
	}
	return nil
}

// GetPerformance compares the latest snapshot against the nearest snapshot
// at the start of each period. Periods without a snapshot are nil.
func (s *Service) GetPerformance(ctx context.Context) (*models.Performance, error) {
	all, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	perf := &models.Performance{
		Periods: map[string]*models.PeriodPerformance{},
		History: []models.Snapshot{},
	}
	if len(all) == 0 {
		return perf, nil
	}

	byDate := make(map[string]*models.Snapshot, len(all))
	for i := range all {
		byDate[all[i].Date] = &all[i]
	}
	latest := &all[len(all)-1]

	today := s.today()
	targets := map[string]time.Time{
		models.PeriodYTD: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location()),
	}
	for period, days := range periodOffsets {
		targets[period] = today.AddDate(0, 0, -days)
	}

	for _, period := range models.PerformancePeriods {
		past := nearest(byDate, targets[period])
		if past == nil {
			perf.Periods[period] = nil
			continue
		}
		perf.Periods[period] = compare(past, latest)
	}

	perf.History = filterSince(all, today.AddDate(0, 0, -s.historyDays))
	return perf, nil
}

// compare builds the change from past to latest, in total and per bucket.
func compare(past, latest *models.Snapshot) *models.PeriodPerformance {
	change := latest.TotalValue - past.TotalValue
	p := &models.PeriodPerformance{
		FromDate:      past.Date,
		ToDate:        latest.Date,
		PreviousValue: past.TotalValue,
		CurrentValue:  latest.TotalValue,
		Change:        common.Round(change, 2),
		ChangePercent: common.Round(common.PercentChange(past.TotalValue, latest.TotalValue), 2),
		ByAssetType:   make(map[models.AssetType]models.BucketChange, len(models.AssetTypes)),
	}

	for _, a := range models.AssetTypes {
		prev := past.Bucket(a).Value
		cur := latest.Bucket(a).Value
		p.ByAssetType[a] = models.BucketChange{
			PreviousValue: prev,
			CurrentValue:  cur,
			Change:        common.Round(cur-prev, 2),
			ChangePercent: common.Round(common.PercentChange(prev, cur), 2),
		}
	}
	return p
}

func filterSince(all []models.Snapshot, cutoff time.Time) []models.Snapshot {
	from := dateKey(cutoff)
	out := make([]models.Snapshot, 0, len(all))
	for _, snap := range all {
		if snap.Date >= from {
			out = append(out, snap)
		}
	}
	return out
}

// GetSnapshots returns snapshots from the last days days, oldest first.
// days <= 0 returns everything.
func (s *Service) GetSnapshots(ctx context.Context, days int) ([]models.Snapshot, error) {
	all, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if days <= 0 {
		return all, nil
	}
	return filterSince(all, s.today().AddDate(0, 0, -days)), nil
}

// RenderHistoryChart renders the last days days of snapshots as a PNG.
func (s *Service) RenderHistoryChart(ctx context.Context, days int) ([]byte, error) {
	snaps, err := s.GetSnapshots(ctx, days)
	if err != nil {
		return nil, err
	}
	return RenderHistoryChart(snaps)
}

// Ensure Service implements SnapshotService
var _ interfaces.SnapshotService = (*Service)(nil)
