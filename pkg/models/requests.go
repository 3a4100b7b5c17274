package models

import "time"

// LoginCredentials carries everything the automator may type on behalf of
// the caller. All fields are optional; a nil credentials block means the
// login is completed by a human in a headed browser.
type LoginCredentials struct {
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	TOTPSecret string `json:"totpSecret,omitempty"`
}

// LoginRequest is the payload for starting a login attempt
type LoginRequest struct {
	URL            string            `json:"url"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty"`
	Headed         bool              `json:"headed,omitempty"`
	Resume         bool              `json:"resume,omitempty"`
	Credentials    *LoginCredentials `json:"credentials,omitempty"`
}

// CheckResult reports the outcome of a validation probe. Probe is the raw
// verdict; Status is the stored status after any decisive update.
type CheckResult struct {
	Domain          string        `json:"domain"`
	Status          SessionStatus `json:"status"`
	Probe           string        `json:"probe"`
	LastValidatedAt *time.Time    `json:"lastValidatedAt,omitempty"`
}

// ProgressEvent is one step of a login attempt as seen by event stream
// subscribers. Detail never contains credentials or cookie values.
type ProgressEvent struct {
	AttemptID string    `json:"attemptId"`
	Domain    string    `json:"domain"`
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	Time      time.Time `json:"ts"`
}
