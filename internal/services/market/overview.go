package market

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// trendThreshold is the YoY change in percent beyond which a segment is
// reported as trending up or down.
const trendThreshold = 2.0

func buildProfile(symbol string, p *common.Payload) models.CompanyProfile {
	name := p.String("$.companyName")
	if name == "" {
		name = symbol
	}
	return models.CompanyProfile{
		Name:        name,
		Sector:      p.String("$.sector"),
		Industry:    p.String("$.industry"),
		CEO:         p.String("$.ceo"),
		Employees:   p.String("$.fullTimeEmployees"),
		Description: p.String("$.description"),
		Website:     p.String("$.website"),
		Image:       p.String("$.image"),
	}
}

func buildPrice(p *common.Payload) models.PriceSummary {
	return models.PriceSummary{
		Current:       p.FloatPtr("$.price"),
		Change:        p.FloatPtr("$.change"),
		ChangePercent: p.FloatPtr("$.changePercentage"),
		MarketCap:     p.FloatPtr("$.marketCap"),
		Volume:        p.FloatPtr("$.volume"),
		AvgVolume:     p.FloatPtr("$.averageVolume"),
		Range52Week:   p.String("$.range"),
		Beta:          p.FloatPtr("$.beta"),
	}
}

// margin is part/revenue as a percentage rounded to 2dp, 0 without revenue.
func margin(part, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return common.Round(part/revenue*100, 2)
}

// buildQuarter summarizes the most recent quarterly income statement.
func buildQuarter(raw json.RawMessage) (models.QuarterSummary, error) {
	p, err := common.DecodePayload(raw)
	if err != nil {
		return models.QuarterSummary{}, err
	}
	if p.Len("$") == 0 {
		return models.QuarterSummary{}, fmt.Errorf("no quarterly statements")
	}

	revenue := p.FloatOr("$[0].revenue", 0)
	netIncome := p.FloatOr("$[0].netIncome", 0)
	gross := p.FloatOr("$[0].grossProfit", 0)
	operating := p.FloatOr("$[0].operatingIncome", 0)

	period := p.String("$[0].period")
	if period == "" {
		period = "Q?"
	}
	period = strings.TrimSpace(period + " " + p.String("$[0].fiscalYear"))

	eps := p.FloatPtr("$[0].eps")
	diluted := p.FloatPtr("$[0].epsDiluted")
	if diluted == nil {
		diluted = p.FloatPtr("$[0].epsdiluted")
	}

	return models.QuarterSummary{
		Period:          period,
		Date:            p.String("$[0].date"),
		Revenue:         revenue,
		NetIncome:       netIncome,
		GrossProfit:     gross,
		OperatingIncome: operating,
		EPS:             eps,
		EPSDiluted:      diluted,
		GrossMargin:     margin(gross, revenue),
		OperatingMargin: margin(operating, revenue),
		NetMargin:       margin(netIncome, revenue),
	}, nil
}

func buildBalanceSheet(p *common.Payload) models.BalanceSheetSummary {
	return models.BalanceSheetSummary{
		Cash:                 p.FloatOr("$[0].cashAndCashEquivalents", 0),
		ShortTermInvestments: p.FloatOr("$[0].shortTermInvestments", 0),
		TotalCash:            p.FloatOr("$[0].cashAndShortTermInvestments", 0),
		TotalAssets:          p.FloatOr("$[0].totalAssets", 0),
		TotalLiabilities:     p.FloatOr("$[0].totalLiabilities", 0),
		TotalDebt:            p.FloatOr("$[0].shortTermDebt", 0) + p.FloatOr("$[0].longTermDebt", 0),
		ShareholderEquity:    p.FloatOr("$[0].totalStockholdersEquity", 0),
	}
}

func buildCashFlow(p *common.Payload) models.CashFlowSummary {
	return models.CashFlowSummary{
		OperatingCashFlow: p.FloatOr("$[0].operatingCashFlow", 0),
		Capex:             p.FloatOr("$[0].capitalExpenditure", 0),
		FreeCashFlow:      p.FloatOr("$[0].freeCashFlow", 0),
		DividendsPaid:     p.FloatOr("$[0].commonDividendsPaid", 0),
		StockBuyback:      p.FloatOr("$[0].commonStockRepurchased", 0),
	}
}

type earningsRow struct {
	Date         string   `json:"date"`
	EPSActual    *float64 `json:"epsActual"`
	EPSEstimated *float64 `json:"epsEstimated"`
}

// buildEarnings reports the most recent reported quarter. Upcoming
// quarters have no actual EPS and are skipped.
func buildEarnings(raw json.RawMessage) (models.EarningsSummary, error) {
	var rows []earningsRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return models.EarningsSummary{}, fmt.Errorf("failed to decode earnings: %w", err)
	}
	for _, r := range rows {
		if r.EPSActual == nil {
			continue
		}
		actual := *r.EPSActual
		var estimated float64
		if r.EPSEstimated != nil {
			estimated = *r.EPSEstimated
		}
		beat := actual > estimated
		return models.EarningsSummary{
			ActualEPS:    r.EPSActual,
			EstimatedEPS: r.EPSEstimated,
			Surprise:     common.Float64Ptr(common.Round(actual-estimated, 4)),
			Beat:         &beat,
		}, nil
	}
	return models.EarningsSummary{}, nil
}

type segmentYear struct {
	FiscalYear any                `json:"fiscalYear"`
	Data       map[string]float64 `json:"data"`
}

// buildPillars turns yearly segment revenue (newest first) into pillars
// sorted by revenue. With two or more years each pillar carries its YoY
// change and trend.
func buildPillars(raw json.RawMessage, geographic bool) ([]models.RevenuePillar, error) {
	var years []segmentYear
	if err := json.Unmarshal(raw, &years); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	pillars := []models.RevenuePillar{}
	if len(years) == 0 {
		return pillars, nil
	}

	current := years[0]
	var previous map[string]float64
	if len(years) > 1 {
		previous = years[1].Data
	}

	var total float64
	names := make([]string, 0, len(current.Data))
	for name, revenue := range current.Data {
		total += revenue
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := current.Data[names[i]], current.Data[names[j]]
		if ri != rj {
			return ri > rj
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		revenue := current.Data[name]
		pillar := models.RevenuePillar{
			Name:       name,
			Revenue:    revenue,
			FiscalYear: current.FiscalYear,
		}
		if geographic {
			pillar.Name = strings.Replace(name, " Segment", "", 1)
		}
		if total != 0 {
			pillar.Share = common.Round(revenue/total*100, 1)
		}
		if previous != nil {
			prev := previous[name]
			var yoy float64
			if prev != 0 {
				yoy = (revenue - prev) / prev * 100
			}
			pillar.PreviousRevenue = common.Float64Ptr(prev)
			pillar.YoYChange = common.Float64Ptr(common.Round(yoy, 1))
			pillar.Trend = trend(yoy)
		}
		pillars = append(pillars, pillar)
	}
	return pillars, nil
}

func trend(yoy float64) string {
	switch {
	case yoy > trendThreshold:
		return "up"
	case yoy < -trendThreshold:
		return "down"
	default:
		return "stable"
	}
}
