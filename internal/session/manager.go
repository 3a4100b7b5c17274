// Package session orchestrates the five public operations over the login
// automator, the record store, the per-domain keyring and the validator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ssokeeper/ssokeeper/internal/login"
	"github.com/ssokeeper/ssokeeper/internal/ratelimit"
	"github.com/ssokeeper/ssokeeper/internal/store"
	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// LoginRunner runs one login attempt to completion. *login.Automator is the
// real implementation; tests substitute fakes.
type LoginRunner interface {
	Login(ctx context.Context, req login.Request, obs login.Observer) (*models.SessionRecord, error)
}

// Checker probes a stored session and persists decisive verdicts
type Checker interface {
	Check(ctx context.Context, rec *models.SessionRecord) Verdict
}

// Limits bounds login attempts. Zero values fall back to the defaults.
type Limits struct {
	// MaxConcurrent caps logins running at once across all domains
	MaxConcurrent int64
	// DefaultTimeout applies when a request carries no timeout
	DefaultTimeout time.Duration
	// MinTimeout and MaxTimeout clamp requested timeouts
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 4
	}
	if l.DefaultTimeout <= 0 {
		l.DefaultTimeout = 120 * time.Second
	}
	if l.MinTimeout <= 0 {
		l.MinTimeout = 5 * time.Second
	}
	if l.MaxTimeout <= 0 {
		l.MaxTimeout = 300 * time.Second
	}
	return l
}

// Manager serializes logins per domain, bounds global browser pressure and
// keeps every persisted mutation behind the store's atomic writes. It is
// safe for concurrent use.
type Manager struct {
	runner  LoginRunner
	checker Checker
	store   *store.FileStore
	locks   *Keyring
	limiter *ratelimit.Limiter
	hub     *Hub
	slots   *semaphore.Weighted
	limits  Limits
}

func NewManager(runner LoginRunner, checker Checker, st *store.FileStore, locks *Keyring, limiter *ratelimit.Limiter, hub *Hub, limits Limits) *Manager {
	limits = limits.withDefaults()
	return &Manager{
		runner:  runner,
		checker: checker,
		store:   st,
		locks:   locks,
		limiter: limiter,
		hub:     hub,
		slots:   semaphore.NewWeighted(limits.MaxConcurrent),
		limits:  limits,
	}
}

// Login acquires the domain's lock, runs the automator and persists the
// resulting record. The lock is released on every exit path before the
// error reaches the caller, so a follow-up attempt never sees a stale hold.
func (m *Manager) Login(ctx context.Context, req models.LoginRequest) (*models.SessionRecord, error) {
	domain, err := models.CanonicalDomain(req.URL)
	if err != nil {
		return nil, err
	}

	if err := m.limiter.Allow(domain); err != nil {
		return nil, fmt.Errorf("%w: %s", err, domain)
	}

	handle, err := m.locks.TryAcquire(domain)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("session: waiting for a login slot: %w", err)
	}
	defer m.slots.Release(1)

	attemptID := uuid.NewString()
	log := slog.With("domain", domain, "attempt_id", attemptID)
	obs := m.observer(attemptID, domain, log)

	timeout := m.clampTimeout(req.TimeoutSeconds)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lreq := login.Request{
		TargetURL:   req.URL,
		Domain:      domain,
		Headed:      req.Headed,
		Credentials: req.Credentials,
	}
	if req.Resume {
		seed, err := m.stageResume(domain)
		if err == nil && seed != "" {
			defer os.Remove(seed)
			lreq.StorageStatePath = seed
		}
	}

	log.Info("login attempt starting", "timeout", timeout, "headed", req.Headed)
	rec, err := m.runner.Login(ctx, lreq, obs)
	if err != nil {
		obs(login.StateFailed, err.Error())
		log.Warn("login attempt failed", "error", err)
		return nil, err
	}

	if err := m.store.Save(rec); err != nil {
		obs(login.StateFailed, "persisting session failed")
		return nil, err
	}
	obs(login.StateDone, "")
	log.Info("login succeeded", "cookies", len(rec.Cookies))
	return rec, nil
}

// Check probes the stored session for a domain. The probe verdict is
// reported even when the decisive store update was skipped or raced.
func (m *Manager) Check(ctx context.Context, domain string) (models.CheckResult, error) {
	domain, err := models.CanonicalDomain(domain)
	if err != nil {
		return models.CheckResult{}, err
	}

	rec, err := m.load(domain)
	if err != nil {
		return models.CheckResult{}, err
	}

	verdict := m.checker.Check(ctx, rec)

	res := models.CheckResult{
		Domain:          domain,
		Probe:           string(verdict),
		Status:          rec.Status,
		LastValidatedAt: rec.LastValidatedAt,
	}
	// the validator may have rewritten the record; report what is stored now
	if fresh, err := m.load(domain); err == nil {
		res.Status = fresh.Status
		res.LastValidatedAt = fresh.LastValidatedAt
	}
	return res, nil
}

// Get returns stored metadata for a domain without probing it
func (m *Manager) Get(domain string) (models.SessionSummary, error) {
	domain, err := models.CanonicalDomain(domain)
	if err != nil {
		return models.SessionSummary{}, err
	}
	rec, err := m.load(domain)
	if err != nil {
		return models.SessionSummary{}, err
	}
	return rec.Summary(), nil
}

// List returns metadata for every stored session, sorted by domain
func (m *Manager) List() ([]models.SessionSummary, error) {
	return m.store.List()
}

// Delete removes a domain's record. Absent records report deleted=false.
func (m *Manager) Delete(domain string) (bool, error) {
	domain, err := models.CanonicalDomain(domain)
	if err != nil {
		return false, err
	}
	return m.store.Delete(domain)
}

// Cookies returns the stored cookie set for a domain, optionally narrowed
// to cookies whose own domain contains filter. Fails closed: an absent or
// unreadable record yields an error, never partial data.
func (m *Manager) Cookies(domain, filter string) ([]models.Cookie, error) {
	domain, err := models.CanonicalDomain(domain)
	if err != nil {
		return nil, err
	}
	rec, err := m.load(domain)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return rec.Cookies, nil
	}

	filter = strings.ToLower(filter)
	matched := make([]models.Cookie, 0, len(rec.Cookies))
	for _, c := range rec.Cookies {
		if strings.Contains(strings.ToLower(c.Domain), filter) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Subscribe streams progress events for a domain's login attempts
func (m *Manager) Subscribe(domain string) (<-chan models.ProgressEvent, func(), error) {
	domain, err := models.CanonicalDomain(domain)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := m.hub.Subscribe(domain)
	return ch, cancel, nil
}

// load reads a record, downgrading corrupt files to not-found. The corrupt
// file stays on disk for manual inspection.
func (m *Manager) load(domain string) (*models.SessionRecord, error) {
	rec, err := m.store.Load(domain)
	if err != nil && errors.Is(err, store.ErrCorrupt) {
		slog.Warn("session record is corrupt, treating as absent",
			"domain", domain, "file", m.store.Path(domain), "error", err)
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, domain)
	}
	return rec, err
}

func (m *Manager) observer(attemptID, domain string, log *slog.Logger) login.Observer {
	return func(state login.State, detail string) {
		log.Debug("login state", "state", state, "detail", detail)
		m.hub.Publish(models.ProgressEvent{
			AttemptID: attemptID,
			Domain:    domain,
			State:     string(state),
			Detail:    detail,
			Time:      time.Now().UTC(),
		})
	}
}

// stageResume writes the stored storage state to a temp file so the new
// context starts from the stale session instead of cold
func (m *Manager) stageResume(domain string) (string, error) {
	rec, err := m.load(domain)
	if err != nil {
		return "", err
	}
	return stageStorageState(rec)
}

func (m *Manager) clampTimeout(seconds int) time.Duration {
	d := m.limits.DefaultTimeout
	if seconds > 0 {
		d = time.Duration(seconds) * time.Second
	}
	switch {
	case d < m.limits.MinTimeout:
		return m.limits.MinTimeout
	case d > m.limits.MaxTimeout:
		return m.limits.MaxTimeout
	}
	return d
}
