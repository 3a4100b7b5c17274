package login

import "errors"

// Failure kinds for a login attempt. The dispatcher maps these to response
// codes; everything else surfaces as an internal error.
var (
	// ErrTimeout means the attempt ran out of budget before authentication
	ErrTimeout = errors.New("login: timed out before authentication completed")
	// ErrMFARequired means an MFA challenge appeared that automation cannot satisfy
	ErrMFARequired = errors.New("login: interactive mfa required")
	// ErrNavigationFailed means the target URL could not be reached
	ErrNavigationFailed = errors.New("login: navigation failed")
	// ErrCredentialsRejected means the provider refused the submitted credentials
	ErrCredentialsRejected = errors.New("login: credentials rejected")
	// ErrBrowserCrashed means the browser or page died mid-attempt
	ErrBrowserCrashed = errors.New("login: browser crashed")
)
