package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/filestore"
)

var testNow = time.Date(2026, time.March, 15, 18, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, interfaces.SnapshotStore) {
	t.Helper()
	logger := common.NewSilentLogger()
	fs, err := filestore.New(logger, t.TempDir())
	require.NoError(t, err)
	store := filestore.NewSnapshotStore(fs, logger)
	svc := NewService(store, logger, WithClock(func() time.Time { return testNow }))
	return svc, store
}

func summaryWith(value, cost float64, equity, cash float64) *models.PortfolioSummary {
	s := models.NewPortfolioSummary()
	s.TotalValue = value
	s.TotalCost = cost
	s.TotalGainLoss = value - cost - cash
	s.ByAssetType[models.AssetTypeEquity].Value = equity
	s.ByAssetType[models.AssetTypeCash].Value = cash
	return s
}

func seed(t *testing.T, store interfaces.SnapshotStore, date string, value float64, equity, cash float64) {
	t.Helper()
	snap := models.NewSnapshot(date, summaryWith(value, value/2, equity, cash), testNow)
	require.NoError(t, store.SaveSnapshot(context.Background(), snap))
}

func TestSaveSnapshot_IdempotentUnlessForced(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	has, err := svc.HasSnapshotToday(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	res, err := svc.SaveSnapshot(ctx, summaryWith(1000, 800, 1000, 0), false)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExists)
	assert.Equal(t, "2026-03-15", res.Date)

	has, err = svc.HasSnapshotToday(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	res, err = svc.SaveSnapshot(ctx, summaryWith(2000, 800, 2000, 0), false)
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)
	assert.InDelta(t, 1000, res.TotalValue, 1e-9, "existing snapshot kept")

	res, err = svc.SaveSnapshot(ctx, summaryWith(2000, 800, 2000, 0), true)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExists)

	stored, err := store.GetSnapshot(ctx, "2026-03-15")
	require.NoError(t, err)
	assert.InDelta(t, 2000, stored.TotalValue, 1e-9, "force overwrites")

	all, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "one snapshot per day")
}

func TestGetNearest(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seed(t, store, "2026-03-10", 100, 100, 0)
	seed(t, store, "2026-03-14", 140, 140, 0)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"exact", "2026-03-10", "2026-03-10"},
		{"one day back", "2026-03-11", "2026-03-10"},
		{"three days back", "2026-03-13", "2026-03-10"},
		{"prefers closest", "2026-03-15", "2026-03-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, _ := time.Parse(models.SnapshotDateLayout, tt.target)
			got, err := svc.GetNearest(ctx, target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Date)
		})
	}

	t.Run("beyond lookback", func(t *testing.T) {
		target, _ := time.Parse(models.SnapshotDateLayout, "2026-03-09")
		_, err := svc.GetNearest(ctx, target)
		assert.True(t, errors.Is(err, interfaces.ErrNotFound))
	})

	t.Run("never looks forward", func(t *testing.T) {
		target, _ := time.Parse(models.SnapshotDateLayout, "2026-03-06")
		_, err := svc.GetNearest(ctx, target)
		assert.True(t, errors.Is(err, interfaces.ErrNotFound))
	})
}

func TestGetPerformance_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	perf, err := svc.GetPerformance(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, perf.Periods)
	assert.Empty(t, perf.Periods)
	assert.NotNil(t, perf.History)
	assert.Empty(t, perf.History)
}

func TestGetPerformance_Periods(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "2026-01-01", 800, 800, 0)    // YTD
	seed(t, store, "2026-02-12", 1000, 1000, 0)  // 1M (target 02-13, one day back)
	seed(t, store, "2026-03-08", 1100, 900, 200) // 1W exact
	seed(t, store, "2026-03-15", 1210.5, 1010.5, 200)

	perf, err := svc.GetPerformance(ctx)
	require.NoError(t, err)
	require.Len(t, perf.Periods, 4)

	w := perf.Periods[models.Period1W]
	require.NotNil(t, w)
	assert.Equal(t, "2026-03-08", w.FromDate)
	assert.Equal(t, "2026-03-15", w.ToDate)
	assert.Equal(t, 110.5, w.Change)
	assert.Equal(t, 10.05, w.ChangePercent)
	eq := w.ByAssetType[models.AssetTypeEquity]
	assert.Equal(t, 110.5, eq.Change)
	assert.InDelta(t, 900, eq.PreviousValue, 1e-9)
	assert.Equal(t, 0.0, w.ByAssetType[models.AssetTypeCash].Change)
	assert.Equal(t, 0.0, w.ByAssetType[models.AssetTypeCrypto].ChangePercent, "zero baseline reports 0%")

	m := perf.Periods[models.Period1M]
	require.NotNil(t, m)
	assert.Equal(t, "2026-02-12", m.FromDate)
	assert.Equal(t, 21.05, m.ChangePercent)

	assert.Contains(t, perf.Periods, models.Period3M)
	assert.Nil(t, perf.Periods[models.Period3M], "no snapshot near 2025-12-15")

	ytd := perf.Periods[models.PeriodYTD]
	require.NotNil(t, ytd)
	assert.Equal(t, "2026-01-01", ytd.FromDate)
	assert.Equal(t, 51.31, ytd.ChangePercent)

	require.Len(t, perf.History, 4)
	assert.Equal(t, "2026-01-01", perf.History[0].Date)
	assert.Equal(t, "2026-03-15", perf.History[3].Date)
}

func TestGetSnapshots_Window(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed(t, store, "2025-11-01", 1, 1, 0)
	seed(t, store, "2026-03-01", 2, 2, 0)
	seed(t, store, "2026-03-14", 3, 3, 0)

	got, err := svc.GetSnapshots(ctx, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-01", got[0].Date)
	assert.Equal(t, "2026-03-14", got[1].Date)

	all, err := svc.GetSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRenderHistoryChart(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.RenderHistoryChart(ctx, 30)
	assert.True(t, errors.Is(err, ErrNotEnoughHistory))

	seed(t, store, "2026-03-10", 1000, 1000, 0)
	seed(t, store, "2026-03-12", 1050, 1050, 0)
	seed(t, store, "2026-03-14", 1020, 1020, 0)

	png, err := svc.RenderHistoryChart(ctx, 30)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
