// Package api is the HTTP surface over the session manager: the five
// public operations plus a metadata read and a progress event stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/mux"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// Service is the manager surface the handlers need. *session.Manager is
// the real implementation.
type Service interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.SessionRecord, error)
	Check(ctx context.Context, domain string) (models.CheckResult, error)
	Get(domain string) (models.SessionSummary, error)
	List() ([]models.SessionSummary, error)
	Delete(domain string) (bool, error)
	Cookies(domain, filter string) ([]models.Cookie, error)
	Subscribe(domain string) (<-chan models.ProgressEvent, func(), error)
}

// Handler routes the public operations to the session manager
type Handler struct {
	svc   Service
	allow []glob.Glob
}

// NewHandler compiles the allow-list patterns. An empty list allows every
// domain.
func NewHandler(svc Service, allowPatterns []string) (*Handler, error) {
	h := &Handler{svc: svc}
	for _, p := range allowPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, err
		}
		h.allow = append(h.allow, g)
	}
	return h, nil
}

type loginResponse struct {
	Domain    string               `json:"domain"`
	Status    models.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Login handles POST /v1/sessions/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	// the allow-list is checked before the lock or the store is touched
	if err := h.checkAllowed(req.URL); err != nil {
		writeMapped(w, err)
		return
	}

	rec, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{
		Domain:    rec.Domain,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
	})
}

// Check handles POST /v1/sessions/{domain}/check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Check(r.Context(), mux.Vars(r)["domain"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Get handles GET /v1/sessions/{domain}: stored metadata, no probe
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Get(mux.Vars(r)["domain"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type listResponse struct {
	Count    int                     `json:"count"`
	Sessions []models.SessionSummary `json:"sessions"`
}

// List handles GET /v1/sessions
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sums, err := h.svc.List()
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(sums), Sessions: sums})
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

// Delete handles DELETE /v1/sessions/{domain}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.Delete(mux.Vars(r)["domain"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: deleted})
}

type cookiesResponse struct {
	Count   int             `json:"count"`
	Cookies []models.Cookie `json:"cookies"`
}

// Cookies handles GET /v1/sessions/{domain}/cookies. Fails closed: absent
// or unreadable records are a 404, never partial data.
func (h *Handler) Cookies(w http.ResponseWriter, r *http.Request) {
	cookies, err := h.svc.Cookies(mux.Vars(r)["domain"], r.URL.Query().Get("filter"))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cookiesResponse{Count: len(cookies), Cookies: cookies})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) checkAllowed(rawURL string) error {
	if len(h.allow) == 0 {
		return nil
	}
	domain, err := models.CanonicalDomain(rawURL)
	if err != nil {
		return err
	}
	for _, g := range h.allow {
		if g.Match(domain) {
			return nil
		}
	}
	return ErrDomainNotAllowed
}
