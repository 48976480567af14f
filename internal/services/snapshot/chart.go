package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/folio/internal/models"
)

// ErrNotEnoughHistory is returned when fewer than two snapshots exist.
var ErrNotEnoughHistory = errors.New("not enough snapshot history to chart")

// RenderHistoryChart renders portfolio value (blue) against invested cost
// (gray dashed) for the given snapshots, oldest first. Returns PNG bytes.
func RenderHistoryChart(snaps []models.Snapshot) ([]byte, error) {
	if len(snaps) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 snapshots, got %d", ErrNotEnoughHistory, len(snaps))
	}

	xValues := make([]time.Time, 0, len(snaps))
	valueY := make([]float64, 0, len(snaps))
	costY := make([]float64, 0, len(snaps))

	for _, s := range snaps {
		d, err := time.Parse(models.SnapshotDateLayout, s.Date)
		if err != nil {
			continue
		}
		xValues = append(xValues, d)
		valueY = append(valueY, s.TotalValue)
		costY = append(costY, s.TotalCost)
	}
	if len(xValues) < 2 {
		return nil, fmt.Errorf("%w: only %d dated snapshots", ErrNotEnoughHistory, len(xValues))
	}

	valueSeries := chart.TimeSeries{
		Name: "Portfolio Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	costSeries := chart.TimeSeries{
		Name: "Invested Cost",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"),
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: costY,
	}

	graph := chart.Chart{
		Title:  "Portfolio History",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.1fk", f/1000)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			costSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
