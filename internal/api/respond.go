package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ssokeeper/ssokeeper/internal/login"
	"github.com/ssokeeper/ssokeeper/internal/ratelimit"
	"github.com/ssokeeper/ssokeeper/internal/session"
	"github.com/ssokeeper/ssokeeper/internal/store"
	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// ErrDomainNotAllowed means the login target fails the configured allow-list
var ErrDomainNotAllowed = errors.New("api: domain not in allow-list")

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response body failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeMapped translates a core failure into its response envelope. Anything
// unclassified is an internal error; its detail goes to the log, not the
// caller.
func writeMapped(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if code == "internal" {
		slog.Error("request failed", "error", err)
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, login.ErrTimeout):
		return http.StatusGatewayTimeout, "login_timeout"
	case errors.Is(err, login.ErrMFARequired):
		return http.StatusUnprocessableEntity, "mfa_required"
	case errors.Is(err, login.ErrNavigationFailed):
		return http.StatusBadGateway, "navigation_failed"
	case errors.Is(err, login.ErrCredentialsRejected):
		return http.StatusUnauthorized, "credentials_rejected"
	case errors.Is(err, login.ErrBrowserCrashed):
		return http.StatusBadGateway, "browser_crashed"
	case errors.Is(err, session.ErrLoginInProgress):
		return http.StatusConflict, "login_in_progress"
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrDomainNotAllowed):
		return http.StatusForbidden, "domain_not_allowed"
	case errors.Is(err, models.ErrInvalidDomain):
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal"
}
