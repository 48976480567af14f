package models

import "time"

// SnapshotDateLayout is the calendar-day key format for snapshots.
const SnapshotDateLayout = "2006-01-02"

// Snapshot is one day's portfolio valuation.
type Snapshot struct {
	Date                 string                     `json:"date"`
	TotalValue           float64                    `json:"totalValue"`
	TotalCost            float64                    `json:"totalCost"`
	TotalGainLoss        float64                    `json:"totalGainLoss"`
	TotalGainLossPercent float64                    `json:"totalGainLossPercent"`
	ByAssetType          map[AssetType]*AssetBucket `json:"byAssetType"`
	TakenAt              time.Time                  `json:"takenAt"`
}

// NewSnapshot copies a summary into a snapshot for the given day.
func NewSnapshot(date string, s *PortfolioSummary, takenAt time.Time) *Snapshot {
	snap := &Snapshot{
		Date:        date,
		ByAssetType: make(map[AssetType]*AssetBucket, len(AssetTypes)),
		TakenAt:     takenAt,
	}
	if s == nil {
		s = NewPortfolioSummary()
	}
	snap.TotalValue = s.TotalValue
	snap.TotalCost = s.TotalCost
	snap.TotalGainLoss = s.TotalGainLoss
	snap.TotalGainLossPercent = s.TotalGainLossPercent
	for _, a := range AssetTypes {
		b := s.Bucket(a)
		snap.ByAssetType[a] = &b
	}
	return snap
}

// Bucket returns the bucket for a, zero if the snapshot predates it.
func (s *Snapshot) Bucket(a AssetType) AssetBucket {
	if b, ok := s.ByAssetType[a]; ok && b != nil {
		return *b
	}
	return AssetBucket{}
}

// SnapshotResult is returned by save. AlreadyExists is set when today's
// snapshot was kept instead of overwritten.
type SnapshotResult struct {
	*Snapshot
	AlreadyExists bool   `json:"alreadyExists"`
	Skipped       bool   `json:"skipped,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// BucketChange is the per-asset-type change over a period.
type BucketChange struct {
	PreviousValue float64 `json:"previousValue"`
	CurrentValue  float64 `json:"currentValue"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// PeriodPerformance compares the latest snapshot with one from the
// start of a trailing window.
type PeriodPerformance struct {
	FromDate      string                     `json:"fromDate"`
	ToDate        string                     `json:"toDate"`
	PreviousValue float64                    `json:"previousValue"`
	CurrentValue  float64                    `json:"currentValue"`
	Change        float64                    `json:"change"`
	ChangePercent float64                    `json:"changePercent"`
	ByAssetType   map[AssetType]BucketChange `json:"byAssetType"`
}

// Performance periods.
const (
	Period1W  = "1W"
	Period1M  = "1M"
	Period3M  = "3M"
	PeriodYTD = "YTD"
)

// PerformancePeriods lists the reported windows in display order.
var PerformancePeriods = []string{Period1W, Period1M, Period3M, PeriodYTD}

// Performance is the trailing-period report. A window with no snapshot in
// range is present with a nil value.
type Performance struct {
	Periods map[string]*PeriodPerformance `json:"periods"`
	History []Snapshot                    `json:"history"`
}
