package session

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ssokeeper/ssokeeper/internal/login"
	"github.com/ssokeeper/ssokeeper/internal/store"
	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// Verdict is a validation probe's reading of a stored session
type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
	VerdictUnknown Verdict = "unknown"
)

// Validator probes stored sessions by resuming them in a headless browser
// and applying the same success predicate used during login. Only decisive
// verdicts touch the store; Unknown never downgrades a session.
type Validator struct {
	launcher login.Launcher
	profiles *login.Profiles
	store    *store.FileStore
	locks    *Keyring
	timeout  time.Duration
}

func NewValidator(launcher login.Launcher, profiles *login.Profiles, st *store.FileStore, locks *Keyring, timeout time.Duration) *Validator {
	if profiles == nil {
		profiles = login.DefaultProfiles()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Validator{
		launcher: launcher,
		profiles: profiles,
		store:    st,
		locks:    locks,
		timeout:  timeout,
	}
}

// Check probes rec and persists decisive verdicts. The probe result is
// returned even when the store update is skipped.
func (v *Validator) Check(ctx context.Context, rec *models.SessionRecord) Verdict {
	verdict := v.probe(ctx, rec)
	if verdict != VerdictUnknown {
		v.recordVerdict(rec.Domain, verdict)
	}
	return verdict
}

func (v *Validator) probe(ctx context.Context, rec *models.SessionRecord) Verdict {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	seed, err := stageStorageState(rec)
	if err != nil {
		slog.Warn("could not stage session for probe", "domain", rec.Domain, "error", err)
		return VerdictUnknown
	}
	defer os.Remove(seed)

	sess, err := v.launcher.Launch(ctx, login.LaunchSpec{StorageStatePath: seed})
	if err != nil {
		slog.Warn("probe browser failed to launch", "domain", rec.Domain, "error", err)
		return VerdictUnknown
	}
	defer sess.Close()

	status, err := sess.Goto(rec.SourceURL, float64(v.timeout.Milliseconds()))
	if err != nil {
		slog.Debug("probe navigation failed", "domain", rec.Domain, "error", err)
		return VerdictUnknown
	}
	switch {
	case status >= 500:
		return VerdictUnknown
	case status == 401 || status == 403:
		return VerdictInvalid
	}
	sess.WaitLoaded(5000)

	target := login.Target{URL: rec.SourceURL, Domain: rec.Domain}
	if v.profiles.DetectorFor(target).Evaluate(sess, target) == login.OutcomeAuthenticated {
		return VerdictValid
	}
	// a page without a readable address is an ambiguous probe, not proof
	// the session died
	if _, err := models.CanonicalDomain(sess.URL()); err != nil {
		return VerdictUnknown
	}
	// back on an authentication surface: the session no longer carries
	return VerdictInvalid
}

// recordVerdict updates status and lastValidatedAt under the domain lock.
// A held lock means a login attempt is running; its outcome supersedes
// this probe, so the update is skipped rather than waited for.
func (v *Validator) recordVerdict(domain string, verdict Verdict) {
	handle, err := v.locks.TryAcquire(domain)
	if err != nil {
		slog.Debug("skipping verdict update, domain busy", "domain", domain)
		return
	}
	defer handle.Release()

	fresh, err := v.store.Load(domain)
	if err != nil {
		slog.Debug("skipping verdict update", "domain", domain, "error", err)
		return
	}

	now := time.Now().UTC()
	fresh.LastValidatedAt = &now
	if verdict == VerdictValid {
		fresh.Status = models.StatusActive
	} else {
		fresh.Status = models.StatusExpired
	}
	if err := v.store.Save(fresh); err != nil {
		slog.Warn("persisting verdict failed", "domain", domain, "error", err)
	}
}

// stageStorageState writes a record's storage state to a temp file that a
// browser context can be seeded from. Callers remove the file.
func stageStorageState(rec *models.SessionRecord) (string, error) {
	f, err := os.CreateTemp("", "ssokeeper-state-*.json")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(rec.StorageState); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
