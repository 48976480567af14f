package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// snapshotTimeout bounds one scheduled or on-load snapshot.
const snapshotTimeout = 2 * time.Minute

// takeDailySnapshot records today's snapshot unless one exists.
func takeDailySnapshot(ctx context.Context, portfolioService interfaces.PortfolioService, logger *common.Logger) {
	start := time.Now()

	result, err := portfolioService.TakeSnapshot(ctx, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Daily snapshot failed")
		return
	}

	event := logger.Info()
	switch {
	case result.Skipped:
		event = logger.Debug().Str("reason", result.Reason)
	case result.AlreadyExists:
		event = logger.Debug().Bool("already_exists", true)
	}
	if result.Snapshot != nil {
		event = event.Str("date", result.Date).Float64("total_value", result.TotalValue)
	}
	event.Dur("elapsed", time.Since(start)).Msg("Daily snapshot")
}

// SnapshotOnLoad records today's snapshot in the background when
// [snapshot] on_load is set.
func (a *App) SnapshotOnLoad() {
	if !a.Config.Snapshot.OnLoad {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		takeDailySnapshot(ctx, a.PortfolioService, a.Logger)
	}()
}

// StartScheduler registers the daily snapshot job on the [snapshot]
// schedule cron spec. An empty schedule disables it.
func (a *App) StartScheduler() error {
	spec := a.Config.Snapshot.Schedule
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		takeDailySnapshot(ctx, a.PortfolioService, a.Logger)
	})
	if err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}

	c.Start()
	a.scheduler = c
	a.Logger.Info().Str("schedule", spec).Msg("Snapshot scheduler started")
	return nil
}

// StopScheduler stops the cron scheduler and waits for a running job.
func (a *App) StopScheduler() {
	if a.scheduler == nil {
		return
	}
	<-a.scheduler.Stop().Done()
	a.scheduler = nil
	a.Logger.Info().Msg("Snapshot scheduler stopped")
}
