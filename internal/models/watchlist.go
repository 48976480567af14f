package models

import "time"

// WatchlistItem is a followed symbol.
type WatchlistItem struct {
	Symbol    string    `json:"symbol"`
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// WatchlistEntry is a watchlist item with its cached price, nil when unknown.
type WatchlistEntry struct {
	WatchlistItem
	Price       *float64 `json:"price"`
	CompanyName string   `json:"companyName,omitempty"`
	Image       string   `json:"image,omitempty"`
}
