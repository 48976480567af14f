package models

import "time"

// CompanyProfile is the identity part of a company overview.
type CompanyProfile struct {
	Name        string `json:"name"`
	Sector      string `json:"sector,omitempty"`
	Industry    string `json:"industry,omitempty"`
	CEO         string `json:"ceo,omitempty"`
	Employees   string `json:"employees,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Image       string `json:"image,omitempty"`
}

// PriceSummary is the market-data part of a company overview.
type PriceSummary struct {
	Current       *float64 `json:"current"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	MarketCap     *float64 `json:"marketCap"`
	Volume        *float64 `json:"volume"`
	AvgVolume     *float64 `json:"avgVolume"`
	Range52Week   string   `json:"range52Week,omitempty"`
	Beta          *float64 `json:"beta"`
}

// QuarterSummary holds the latest quarter's income statement with margins.
type QuarterSummary struct {
	Period          string   `json:"period"`
	Date            string   `json:"date,omitempty"`
	Revenue         float64  `json:"revenue"`
	NetIncome       float64  `json:"netIncome"`
	GrossProfit     float64  `json:"grossProfit"`
	OperatingIncome float64  `json:"operatingIncome"`
	EPS             *float64 `json:"eps"`
	EPSDiluted      *float64 `json:"epsDiluted"`
	GrossMargin     float64  `json:"grossMargin"`
	OperatingMargin float64  `json:"operatingMargin"`
	NetMargin       float64  `json:"netMargin"`
}

type BalanceSheetSummary struct {
	Cash                 float64 `json:"cash"`
	ShortTermInvestments float64 `json:"shortTermInvestments"`
	TotalCash            float64 `json:"totalCash"`
	TotalAssets          float64 `json:"totalAssets"`
	TotalLiabilities     float64 `json:"totalLiabilities"`
	TotalDebt            float64 `json:"totalDebt"`
	ShareholderEquity    float64 `json:"shareholderEquity"`
}

type CashFlowSummary struct {
	OperatingCashFlow float64 `json:"operatingCashFlow"`
	Capex             float64 `json:"capex"`
	FreeCashFlow      float64 `json:"freeCashFlow"`
	DividendsPaid     float64 `json:"dividendsPaid"`
	StockBuyback      float64 `json:"stockBuyback"`
}

type EarningsSummary struct {
	ActualEPS    *float64 `json:"actualEps"`
	EstimatedEPS *float64 `json:"estimatedEps"`
	Surprise     *float64 `json:"surprise"`
	Beat         *bool    `json:"beat"`
}

// RevenuePillar is one product or geographic segment with its trend.
type RevenuePillar struct {
	Name            string   `json:"name"`
	Revenue         float64  `json:"revenue"`
	PreviousRevenue *float64 `json:"previousRevenue,omitempty"`
	YoYChange       *float64 `json:"yoyChange,omitempty"`
	Share           float64  `json:"share"`
	Trend           string   `json:"trend,omitempty"` // up, down, stable
	FiscalYear      any      `json:"fiscalYear,omitempty"`
}

type RevenuePillars struct {
	Products    []RevenuePillar `json:"products"`
	Geographies []RevenuePillar `json:"geographies"`
}

// CompanyOverview aggregates cached resources for one company. Profile is
// required; every other section degrades to empty when unavailable.
type CompanyOverview struct {
	Symbol         string              `json:"symbol"`
	Profile        CompanyProfile      `json:"profile"`
	Price          PriceSummary        `json:"price"`
	LatestQuarter  QuarterSummary      `json:"latestQuarter"`
	BalanceSheet   BalanceSheetSummary `json:"balanceSheet"`
	CashFlow       CashFlowSummary     `json:"cashFlow"`
	Earnings       EarningsSummary     `json:"earnings"`
	RevenuePillars RevenuePillars      `json:"revenuePillars"`
	Degraded       []string            `json:"degraded,omitempty"`
}

// Insights is AI-generated commentary for a company.
type Insights struct {
	Symbol      string    `json:"symbol"`
	Model       string    `json:"model"`
	Commentary  string    `json:"commentary"`
	GeneratedAt time.Time `json:"generatedAt"`
	Cached      bool      `json:"cached"`
	Stale       bool      `json:"stale,omitempty"`
}
