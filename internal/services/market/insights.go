package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Insights returns AI commentary for symbol. Commentary is cached like any
// other resource; force regenerates it, and a failed regeneration serves
// the previous commentary marked stale.
func (s *Service) Insights(ctx context.Context, symbol string, force bool) (*models.Insights, error) {
	if s.gemini == nil {
		return nil, ErrInsightsUnavailable
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	generate := interfaces.FetcherFunc(func(ctx context.Context, resource, symbol string, _ map[string]string) (json.RawMessage, error) {
		return s.generateInsights(ctx, symbol)
	})

	res, err := s.cache.Get(ctx, models.ResourceInsights, symbol,
		cache.FetchWith(generate),
		cache.WithForceRefresh(force),
	)
	if err != nil {
		return nil, err
	}

	var out models.Insights
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode cached insights for %s: %w", symbol, err)
	}
	out.Cached = res.Source == cache.SourceHit
	out.Stale = res.Stale()
	return &out, nil
}

func (s *Service) generateInsights(ctx context.Context, symbol string) (json.RawMessage, error) {
	overview, err := s.CompanyOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	commentary, err := s.gemini.GenerateContent(ctx, buildInsightsPrompt(overview))
	if err != nil {
		return nil, fmt.Errorf("insights generation failed for %s: %w", symbol, err)
	}
	s.logger.Info().
		Str("symbol", symbol).
		Str("model", s.gemini.Model()).
		Dur("elapsed", time.Since(start)).
		Msg("Insights generated")

	return json.Marshal(models.Insights{
		Symbol:      symbol,
		Model:       s.gemini.Model(),
		Commentary:  strings.TrimSpace(commentary),
		GeneratedAt: time.Now().UTC(),
	})
}

// buildInsightsPrompt describes the company from its overview figures.
func buildInsightsPrompt(o *models.CompanyOverview) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Write a concise investor briefing for %s (%s)", o.Profile.Name, o.Symbol))
	if o.Profile.Sector != "" || o.Profile.Industry != "" {
		sb.WriteString(fmt.Sprintf(", a %s company in %s", o.Profile.Sector, o.Profile.Industry))
	}
	sb.WriteString(".\n\n")

	if o.Price.Current != nil {
		sb.WriteString(fmt.Sprintf("Price: %.2f", *o.Price.Current))
		if o.Price.MarketCap != nil {
			sb.WriteString(fmt.Sprintf(", market cap %.0f", *o.Price.MarketCap))
		}
		if o.Price.Range52Week != "" {
			sb.WriteString(fmt.Sprintf(", 52-week range %s", o.Price.Range52Week))
		}
		sb.WriteString("\n")
	}

	q := o.LatestQuarter
	if q.Revenue != 0 {
		sb.WriteString(fmt.Sprintf("Latest quarter %s: revenue %.0f, net income %.0f, gross margin %.2f%%, operating margin %.2f%%, net margin %.2f%%\n",
			q.Period, q.Revenue, q.NetIncome, q.GrossMargin, q.OperatingMargin, q.NetMargin))
	}
	if o.CashFlow.FreeCashFlow != 0 {
		sb.WriteString(fmt.Sprintf("Free cash flow: %.0f\n", o.CashFlow.FreeCashFlow))
	}
	if o.BalanceSheet.TotalAssets != 0 {
		sb.WriteString(fmt.Sprintf("Total cash %.0f, total debt %.0f\n", o.BalanceSheet.TotalCash, o.BalanceSheet.TotalDebt))
	}
	if e := o.Earnings; e.ActualEPS != nil && e.Beat != nil {
		verdict := "missed"
		if *e.Beat {
			verdict = "beat"
		}
		sb.WriteString(fmt.Sprintf("Last reported EPS %.2f %s estimates\n", *e.ActualEPS, verdict))
	}
	for _, p := range o.RevenuePillars.Products {
		sb.WriteString(fmt.Sprintf("Segment %s: %.1f%% of revenue", p.Name, p.Share))
		if p.YoYChange != nil {
			sb.WriteString(fmt.Sprintf(", %+.1f%% YoY", *p.YoYChange))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`
Cover in under 250 words:
- What drives the business today
- The most important recent change in the numbers
- Key risks an investor should watch
Plain prose, no headings, no investment advice disclaimers.`)

	return sb.String()
}
