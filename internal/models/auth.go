package models

import "time"

// PINVerification is the result of a PIN check. Token is only issued when a
// PIN is set and the check succeeded.
type PINVerification struct {
	Verified  bool      `json:"verified"`
	PINSet    bool      `json:"pinSet"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}
