// Package models defines data structures for Folio
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAssetType is returned for asset types outside the closed set.
var ErrInvalidAssetType = errors.New("invalid asset type")

// AssetType is the closed category of a holding. It drives pricing and
// cost-basis rules in valuation.
type AssetType string

const (
	AssetTypeEquity AssetType = "equity"
	AssetTypeFund   AssetType = "fund"
	AssetTypeCrypto AssetType = "crypto"
	AssetTypeCustom AssetType = "custom"
	AssetTypeCash   AssetType = "cash"
	AssetTypeOption AssetType = "option"
)

// AssetTypes lists every asset type in display order.
var AssetTypes = []AssetType{
	AssetTypeEquity,
	AssetTypeFund,
	AssetTypeCrypto,
	AssetTypeCustom,
	AssetTypeCash,
	AssetTypeOption,
}

// Valid reports whether a is a member of the closed set.
func (a AssetType) Valid() bool {
	switch a {
	case AssetTypeEquity, AssetTypeFund, AssetTypeCrypto, AssetTypeCustom, AssetTypeCash, AssetTypeOption:
		return true
	}
	return false
}

// IsMarketPriced reports whether the asset type needs a live quote.
func (a AssetType) IsMarketPriced() bool {
	switch a {
	case AssetTypeEquity, AssetTypeFund, AssetTypeCrypto, AssetTypeOption:
		return true
	}
	return false
}

// ParseAssetType parses an asset type name. The legacy names "stock" and
// "etf" map to equity and fund; any other unknown value is rejected.
func ParseAssetType(s string) (AssetType, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "stock":
		return AssetTypeEquity, nil
	case "etf":
		return AssetTypeFund, nil
	default:
		a := AssetType(v)
		if !a.Valid() {
			return "", fmt.Errorf("%w: %q", ErrInvalidAssetType, s)
		}
		return a, nil
	}
}

// UnmarshalJSON rejects unknown asset types instead of carrying them through.
func (a *AssetType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAssetType(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// OptionType is call or put.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// ParseOptionType parses "call" or "put", case-insensitively.
func ParseOptionType(s string) (OptionType, error) {
	switch v := OptionType(strings.ToLower(strings.TrimSpace(s))); v {
	case OptionTypeCall, OptionTypePut:
		return v, nil
	}
	return "", fmt.Errorf("%w: invalid option type %q", ErrValidation, s)
}

// UnmarshalJSON rejects anything other than call or put.
func (o *OptionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOptionType(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// knownCryptos and knownFunds drive auto-categorization of new holdings.
var knownCryptos = toSet(
	"BTC", "ETH", "SOL", "XRP", "ADA", "DOGE", "DOT", "AVAX", "MATIC", "LINK",
	"SHIB", "LTC", "UNI", "ATOM", "XLM", "ALGO", "VET", "FIL", "HBAR", "ICP",
	"APT", "ARB", "OP", "NEAR", "INJ", "TIA", "SUI", "SEI", "JUP", "RENDER",
	"PEPE", "WIF", "BONK", "FLOKI", "MEME", "ONDO", "ENA", "JASMY", "FET",
)

var knownFunds = toSet(
	"SPY", "QQQ", "VOO", "VTI", "IWM", "ARKK", "SCHD", "VIG", "VYM", "JEPI",
	"VGT", "XLK", "XLF", "XLE", "XLV", "XLI", "XLC", "XLY", "XLP", "XLU",
	"IVV", "DIA", "VEA", "VWO", "EFA", "EEM", "AGG", "BND", "LQD", "HYG",
	"GLD", "SLV", "USO", "TLT", "IEF", "SHY", "IEMG", "VNQ", "SCHF", "SCHA",
	"SPLG", "SPTM", "VB", "VO", "VTV", "VUG", "VXUS", "ITOT", "IJH", "IJR",
	"QQQM", "QQQE", "SOXX", "SMH", "XBI", "IBB", "KWEB", "FXI", "MCHI",
)

func toSet(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}

// CategorizeTicker guesses the asset type of a ticker from the lookup tables.
// Anything not recognised as crypto or a fund is treated as an equity.
func CategorizeTicker(ticker string) AssetType {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if _, ok := knownCryptos[t]; ok {
		return AssetTypeCrypto
	}
	if _, ok := knownFunds[t]; ok {
		return AssetTypeFund
	}
	return AssetTypeEquity
}
