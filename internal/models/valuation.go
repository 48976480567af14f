package models

// EnrichedHolding is a holding with derived pricing. CurrentPrice,
// CurrentValue, GainLoss and GainLossPercent are nil when the price is
// unknown; nil means "unknown", zero is a real value.
type EnrichedHolding struct {
	Holding
	CurrentPrice    *float64 `json:"currentPrice"`
	CurrentValue    *float64 `json:"currentValue"`
	TotalCost       float64  `json:"totalCost"`
	GainLoss        *float64 `json:"gainLoss"`
	GainLossPercent *float64 `json:"gainLossPercent"`
	PriceSource     string   `json:"priceSource,omitempty"`
	Name            string   `json:"name,omitempty"`
	Image           string   `json:"image,omitempty"`
	Industry        string   `json:"industry,omitempty"`
}

// Priced reports whether a current price is known.
func (e *EnrichedHolding) Priced() bool {
	return e.CurrentPrice != nil
}

// AssetBucket accumulates one asset type in a summary.
type AssetBucket struct {
	Count    int     `json:"count"`
	Value    float64 `json:"value"`
	Cost     float64 `json:"cost"`
	GainLoss float64 `json:"gainLoss"`
}

// PortfolioSummary aggregates enriched holdings. Cash is counted in
// TotalValue and its own bucket but not in TotalCost.
type PortfolioSummary struct {
	TotalValue           float64                    `json:"totalValue"`
	TotalCost            float64                    `json:"totalCost"`
	TotalGainLoss        float64                    `json:"totalGainLoss"`
	TotalGainLossPercent float64                    `json:"totalGainLossPercent"`
	ByAssetType          map[AssetType]*AssetBucket `json:"byAssetType"`
}

// NewPortfolioSummary returns an empty summary with a bucket for every asset type.
func NewPortfolioSummary() *PortfolioSummary {
	s := &PortfolioSummary{ByAssetType: make(map[AssetType]*AssetBucket, len(AssetTypes))}
	for _, a := range AssetTypes {
		s.ByAssetType[a] = &AssetBucket{}
	}
	return s
}

// Bucket returns the bucket for a, never nil.
func (s *PortfolioSummary) Bucket(a AssetType) AssetBucket {
	if b, ok := s.ByAssetType[a]; ok && b != nil {
		return *b
	}
	return AssetBucket{}
}

// Portfolio is the priced view of every holding.
type Portfolio struct {
	Holdings []EnrichedHolding `json:"holdings"`
	Summary  *PortfolioSummary `json:"summary"`
	Count    int               `json:"count"`
}
