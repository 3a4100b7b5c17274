package models

import (
	"encoding/json"
	"time"
)

// SessionStatus reflects the last known validity of a saved session
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusExpired SessionStatus = "expired"
	StatusUnknown SessionStatus = "unknown"
)

// Cookie is a single browser cookie captured from an authenticated context.
// Expires is a unix timestamp in seconds; values <= 0 mean a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HttpOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionRecord is the unit of persistence: everything needed to resume
// an authenticated browser context for one domain
type SessionRecord struct {
	Domain          string          `json:"domain"`
	SourceURL       string          `json:"sourceUrl"`
	Status          SessionStatus   `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastValidatedAt *time.Time      `json:"lastValidatedAt,omitempty"`
	Cookies         []Cookie        `json:"cookies"`
	StorageState    json.RawMessage `json:"storageState"`
}

// SessionSummary is the metadata-only view returned by listings.
// It never carries cookie values or storage state.
type SessionSummary struct {
	Domain          string        `json:"domain"`
	SourceURL       string        `json:"sourceUrl"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastValidatedAt *time.Time    `json:"lastValidatedAt,omitempty"`
	CookieCount     int           `json:"cookieCount"`
}

// Summary strips a record down to its listable metadata
func (r *SessionRecord) Summary() SessionSummary {
	return SessionSummary{
		Domain:          r.Domain,
		SourceURL:       r.SourceURL,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		LastValidatedAt: r.LastValidatedAt,
		CookieCount:     len(r.Cookies),
	}
}
