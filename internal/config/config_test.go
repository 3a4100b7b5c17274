package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.NotEmpty(t, cfg.SessionsDir)
	assert.Equal(t, 120*time.Second, cfg.LoginTimeout)
	assert.Equal(t, 30*time.Second, cfg.CheckTimeout)
	assert.Equal(t, int64(4), cfg.MaxConcurrentLogins)
	assert.Equal(t, "chromium", cfg.BrowserEngine)
	assert.Empty(t, cfg.AllowedDomains)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SSOKEEPER_ADDR", "127.0.0.1:9000")
	t.Setenv("SSOKEEPER_SESSIONS_DIR", t.TempDir())
	t.Setenv("SSOKEEPER_LOGIN_TIMEOUT", "45s")
	t.Setenv("SSOKEEPER_ALLOWED_DOMAINS", "*.example.com,portal.corp.net")
	t.Setenv("SSOKEEPER_LOG_FORMAT", "json")
	t.Setenv("SSOKEEPER_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.LoginTimeout)
	assert.Equal(t, []string{"*.example.com", "portal.corp.net"}, cfg.AllowedDomains)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero timeout", "SSOKEEPER_LOGIN_TIMEOUT", "0s"},
		{"no concurrency", "SSOKEEPER_MAX_CONCURRENT_LOGINS", "0"},
		{"zero burst", "SSOKEEPER_ATTEMPT_BURST", "0"},
		{"unknown engine", "SSOKEEPER_BROWSER_ENGINE", "netscape"},
		{"unknown format", "SSOKEEPER_LOG_FORMAT", "xml"},
		{"unknown level", "SSOKEEPER_LOG_LEVEL", "loud"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
