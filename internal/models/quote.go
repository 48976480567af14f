package models

// EquityQuote is the price view of a company profile.
type EquityQuote struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	CompanyName string  `json:"companyName,omitempty"`
	Image       string  `json:"image,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

// CryptoQuote is one coin from a batch price lookup.
type CryptoQuote struct {
	Ticker    string  `json:"ticker"`
	CoinID    string  `json:"coinId"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	MarketCap float64 `json:"marketCap"`
	Volume24h float64 `json:"volume24h"`
}

// OptionContract is one row of an option chain.
type OptionContract struct {
	Symbol       string     `json:"symbol"`
	Underlying   string     `json:"underlying"`
	OptionType   OptionType `json:"option_type"`
	Strike       float64    `json:"strike"`
	Expiration   string     `json:"expiration_date"`
	Last         float64    `json:"last"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Volume       int64      `json:"volume"`
	OpenInterest int64      `json:"open_interest"`
}

// OptionQuoteKey identifies the contract behind an option holding.
type OptionQuoteKey struct {
	Underlying string
	Expiration string
	Strike     float64
	OptionType OptionType
}

// Key returns the OptionQuoteKey for an option holding.
func (o *OptionFields) Key() OptionQuoteKey {
	return OptionQuoteKey{
		Underlying: o.UnderlyingTicker,
		Expiration: o.ExpirationDate,
		Strike:     o.StrikePrice,
		OptionType: o.OptionType,
	}
}
