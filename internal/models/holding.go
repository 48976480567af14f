package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OptionContractMultiplier is the number of underlying shares per contract.
const OptionContractMultiplier = 100.0

// ErrValidation marks malformed input.
var ErrValidation = errors.New("validation failed")

// ErrTickerNotFound is returned when a ticker has no upstream profile.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrOptionFieldsRequired is returned when an option holding is missing contract details.
var ErrOptionFieldsRequired = errors.New("option holdings require optionType, strikePrice, expirationDate and underlyingTicker")

// OptionFields describes the contract behind an option holding.
type OptionFields struct {
	OptionType       OptionType `json:"optionType"`
	StrikePrice      float64    `json:"strikePrice"`
	ExpirationDate   string     `json:"expirationDate"` // YYYY-MM-DD
	UnderlyingTicker string     `json:"underlyingTicker"`
	LastKnownPremium float64    `json:"lastKnownPremium,omitempty"`
}

// Normalize trims and uppercases the underlying ticker.
func (o *OptionFields) Normalize() {
	if o == nil {
		return
	}
	o.UnderlyingTicker = strings.ToUpper(strings.TrimSpace(o.UnderlyingTicker))
}

// Validate checks that every contract field is present and well formed.
func (o *OptionFields) Validate() error {
	if o == nil {
		return ErrOptionFieldsRequired
	}
	if o.OptionType == "" || o.StrikePrice <= 0 || o.ExpirationDate == "" || strings.TrimSpace(o.UnderlyingTicker) == "" {
		return ErrOptionFieldsRequired
	}
	if _, err := ParseOptionType(string(o.OptionType)); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01-02", o.ExpirationDate); err != nil {
		return fmt.Errorf("%w: invalid expirationDate %q, expected YYYY-MM-DD", ErrValidation, o.ExpirationDate)
	}
	return nil
}

// Holding is a raw portfolio position as stored.
type Holding struct {
	ID           string        `json:"id"`
	Ticker       string        `json:"ticker"`
	Quantity     float64       `json:"quantity"`
	CostBasis    float64       `json:"costBasis"` // per unit; per share of premium for options
	AccountName  string        `json:"accountName"`
	AssetType    AssetType     `json:"assetType"`
	OptionFields *OptionFields `json:"optionFields,omitempty"`
	AddedAt      time.Time     `json:"addedAt"`
	UpdatedAt    time.Time     `json:"updatedAt,omitzero"`
}

// Validate checks the invariants a stored holding must satisfy.
func (h *Holding) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" {
		return fmt.Errorf("%w: ticker is required", ErrValidation)
	}
	if !h.AssetType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAssetType, h.AssetType)
	}
	if h.AssetType == AssetTypeOption {
		return h.OptionFields.Validate()
	}
	return nil
}

// Multiplier returns the value multiplier applied to price and cost basis.
func (h *Holding) Multiplier() float64 {
	if h.AssetType == AssetTypeOption {
		return OptionContractMultiplier
	}
	return 1
}

// HoldingInput is the payload for adding a holding. AssetType is optional
// and is auto-categorized from the ticker when empty.
type HoldingInput struct {
	Ticker       string        `json:"ticker"`
	Quantity     float64       `json:"quantity"`
	CostBasis    float64       `json:"costBasis"`
	AccountName  string        `json:"accountName"`
	AssetType    string        `json:"assetType,omitempty"`
	OptionFields *OptionFields `json:"optionFields,omitempty"`
}

// HoldingUpdate is a partial update; nil fields are left unchanged.
type HoldingUpdate struct {
	Quantity     *float64      `json:"quantity,omitempty"`
	CostBasis    *float64      `json:"costBasis,omitempty"`
	AccountName  *string       `json:"accountName,omitempty"`
	OptionFields *OptionFields `json:"optionFields,omitempty"`
}

// Apply merges the update into h and stamps UpdatedAt.
func (u *HoldingUpdate) Apply(h *Holding, now time.Time) {
	if u.Quantity != nil {
		h.Quantity = *u.Quantity
	}
	if u.CostBasis != nil {
		h.CostBasis = *u.CostBasis
	}
	if u.AccountName != nil {
		h.AccountName = *u.AccountName
	}
	if u.OptionFields != nil {
		fields := *u.OptionFields
		fields.Normalize()
		h.OptionFields = &fields
	}
	h.UpdatedAt = now
}

// HoldingsOverview groups stored holdings without pricing them.
type HoldingsOverview struct {
	TotalHoldings int                     `json:"totalHoldings"`
	ByAssetType   map[AssetType][]Holding `json:"byAssetType"`
	Accounts      []string                `json:"accounts"`
}
