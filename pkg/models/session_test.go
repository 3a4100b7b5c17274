package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryCarriesNoSecrets(t *testing.T) {
	now := time.Now().UTC()
	rec := SessionRecord{
		Domain:    "portal.example.com",
		SourceURL: "https://portal.example.com",
		Status:    StatusActive,
		CreatedAt: now,
		Cookies: []Cookie{
			{Name: "sid", Value: "top-secret-value", Domain: ".example.com", Path: "/"},
			{Name: "pref", Value: "dark", Domain: "portal.example.com", Path: "/"},
		},
		StorageState: json.RawMessage(`{"cookies":[{"name":"sid","value":"top-secret-value"}],"origins":[]}`),
	}

	sum := rec.Summary()
	assert.Equal(t, rec.Domain, sum.Domain)
	assert.Equal(t, rec.Status, sum.Status)
	assert.Equal(t, 2, sum.CookieCount)
	assert.Nil(t, sum.LastValidatedAt)

	raw, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "top-secret-value")
	assert.NotContains(t, string(raw), "storageState")
}

func TestSessionRecordRoundTrip(t *testing.T) {
	validated := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rec := SessionRecord{
		Domain:          "portal.example.com:8443",
		SourceURL:       "https://portal.example.com:8443/home",
		Status:          StatusUnknown,
		CreatedAt:       time.Date(2026, 8, 19, 9, 30, 0, 0, time.UTC),
		LastValidatedAt: &validated,
		Cookies: []Cookie{
			{Name: "sid", Value: "v", Domain: ".example.com", Path: "/", Expires: 1787000000, HttpOnly: true, Secure: true, SameSite: "Lax"},
			{Name: "tmp", Value: "v2", Domain: "portal.example.com", Path: "/", Expires: -1},
		},
		StorageState: json.RawMessage(`{"cookies":[],"origins":[]}`),
	}

	raw, err := json.Marshal(&rec)
	require.NoError(t, err)

	var back SessionRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, rec.Domain, back.Domain)
	assert.Equal(t, rec.Status, back.Status)
	assert.True(t, rec.CreatedAt.Equal(back.CreatedAt))
	require.NotNil(t, back.LastValidatedAt)
	assert.True(t, validated.Equal(*back.LastValidatedAt))
	assert.Equal(t, rec.Cookies, back.Cookies)
	assert.JSONEq(t, string(rec.StorageState), string(back.StorageState))
}
