package login

import (
	"context"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// Session is the surface of one live browser page that the login flow
// drives. Implementations back it with a real browser; tests use fakes.
// Selector probes treat driver errors as "not there" rather than failing
// the attempt.
type Session interface {
	// URL reports the page's current address
	URL() string
	// Goto navigates and returns the main response status (0 if none)
	Goto(url string, timeoutMs float64) (int, error)
	// WaitLoaded waits for network idle, best effort
	WaitLoaded(timeoutMs float64)
	// IsVisible reports whether the first match for selector is visible now
	IsVisible(selector string) bool
	// WaitVisible waits until the first match for selector becomes visible
	WaitVisible(selector string, timeoutMs float64) error
	// Fill types value into the first match for selector
	Fill(selector, value string, timeoutMs float64) error
	// Click clicks the first match for selector
	Click(selector string, timeoutMs float64) error
	// Count reports how many elements match selector
	Count(selector string) (int, error)
	// FillNth types value into the nth match for selector
	FillNth(selector string, n int, value string) error
	// Extract snapshots the context's storage state and cookies
	Extract() (storageState []byte, cookies []models.Cookie, err error)
	// Close tears down the page and everything behind it
	Close() error
}

// LaunchSpec describes the browser context a login attempt needs
type LaunchSpec struct {
	// Headed opens a visible window so a human can drive the flow
	Headed bool
	// StorageStatePath seeds the context from a saved state file; empty
	// means a fresh context with no prior state
	StorageStatePath string
}

// Launcher opens isolated browser sessions
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Session, error)
}
