// Package login drives a browser through an identity provider's sign-in
// flow and captures the authenticated state.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

// Request describes one login attempt. Domain must already be canonical.
type Request struct {
	TargetURL        string
	Domain           string
	Headed           bool
	Credentials      *models.LoginCredentials
	StorageStatePath string
}

// Automator runs login attempts against a Launcher. One automator serves
// all domains; attempts are independent.
type Automator struct {
	launcher Launcher
	profiles *Profiles
	poll     time.Duration
}

// NewAutomator wires an automator. A nil profiles resolver means the
// built-in host detection only.
func NewAutomator(launcher Launcher, profiles *Profiles) *Automator {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Automator{
		launcher: launcher,
		profiles: profiles,
		poll:     time.Second,
	}
}

// Login runs an attempt to completion within ctx's deadline. A browser
// crash is retried once with a fresh session; every other failure is
// final. On success the returned record is complete and ready to persist.
func (a *Automator) Login(ctx context.Context, req Request, obs Observer) (*models.SessionRecord, error) {
	if obs == nil {
		obs = func(State, string) {}
	}

	rec, err := a.attempt(ctx, req, obs)
	if err != nil && errors.Is(err, ErrBrowserCrashed) && ctx.Err() == nil {
		slog.Warn("browser crashed mid-login, retrying once", "domain", req.Domain)
		rec, err = a.attempt(ctx, req, obs)
	}
	return rec, err
}

func (a *Automator) attempt(ctx context.Context, req Request, obs Observer) (*models.SessionRecord, error) {
	obs(StateNavigating, req.TargetURL)

	sess, err := a.launcher.Launch(ctx, LaunchSpec{
		Headed:           req.Headed,
		StorageStatePath: req.StorageStatePath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: launch: %v", ErrBrowserCrashed, err)
	}
	defer sess.Close()

	if _, err := sess.Goto(req.TargetURL, msUntilDeadline(ctx, 30000)); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: navigation still pending", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}
	sess.WaitLoaded(10000)

	obs(StateAwaitingAuth, "")
	target := Target{URL: req.TargetURL, Domain: req.Domain}
	detector := a.profiles.DetectorFor(target)

	// a live session may already satisfy the predicate
	if detector.Evaluate(sess, target) == OutcomeAuthenticated {
		return a.extract(sess, req, obs)
	}

	if req.Credentials != nil && req.Credentials.Username != "" && req.Credentials.Password != "" {
		a.fillCredentials(sess, req.Credentials)
	}

	var (
		mfaSeen   bool
		totpTried bool
	)
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state := StateAwaitingAuth
			if mfaSeen {
				state = StateMFAPending
			}
			return nil, fmt.Errorf("%w: still %s", ErrTimeout, state)
		case <-ticker.C:
		}

		switch detector.Evaluate(sess, target) {
		case OutcomeAuthenticated:
			return a.extract(sess, req, obs)

		case OutcomeRejected:
			return nil, fmt.Errorf("%w: provider reported a sign-in error", ErrCredentialsRejected)

		case OutcomeMFAPending:
			if !mfaSeen {
				mfaSeen = true
				obs(StateMFAPending, "second factor challenge on screen")
			}
			secret := ""
			if req.Credentials != nil {
				secret = req.Credentials.TOTPSecret
			}
			// with no credentials at all, an upstream agent may still be
			// completing the challenge; only a credentialed headless run
			// has nobody left to answer it
			switch {
			case req.Credentials != nil && secret == "" && !req.Headed:
				return nil, fmt.Errorf("%w: no totp secret and no window for a human", ErrMFARequired)
			case secret != "" && !totpTried:
				totpTried = true
				if err := a.submitTOTP(sess, secret); err != nil {
					slog.Warn("totp submission failed", "domain", req.Domain, "error", err)
					if !req.Headed {
						return nil, fmt.Errorf("%w: %v", ErrMFARequired, err)
					}
				}
			}

		case OutcomePending:
		}
	}
}

// fillCredentials mirrors the provider's form variants: single-page forms
// get both fields at once, identifier-first flows get username, Next, then
// password. Inability to fill is not fatal; federated flows and already
// warm IdP cookies can still complete without typing.
func (a *Automator) fillCredentials(sess Session, creds *models.LoginCredentials) {
	userOK := fillFirstMatch(sess, usernameSelectors, creds.Username)
	if !userOK {
		slog.Warn("no username field matched")
	}
	passOK := fillFirstMatch(sess, passwordSelectors, creds.Password)

	switch {
	case userOK && passOK:
		clickFirstMatch(sess, submitSelectors)
	case userOK && !passOK:
		clickFirstMatch(sess, nextSelectors)
		_ = sess.WaitVisible(`input[type="password"], input[name="password"]`, 10000)
		if fillFirstMatch(sess, passwordSelectors, creds.Password) {
			clickFirstMatch(sess, submitSelectors)
		} else {
			slog.Warn("password field never appeared after identifier step")
		}
	default:
		slog.Warn("no credential fields matched, waiting for federated or manual flow")
	}
}

// submitTOTP switches the challenge to an enterable code when needed, then
// fills either a single input or per-digit boxes
func (a *Automator) submitTOTP(sess Session, secret string) error {
	clickFirstMatch(sess, codeFactorSelectors)

	code, err := GenerateTOTP(secret, time.Now())
	if err != nil {
		return err
	}
	if !fillFirstMatch(sess, otpSelectors, code) && !fillDigitBoxes(sess, code) {
		return errors.New("no code input matched")
	}
	clickFirstMatch(sess, mfaSubmitSelectors)
	return nil
}

func fillDigitBoxes(sess Session, code string) bool {
	n, err := sess.Count(digitBoxSelector)
	if err != nil || n < totpDigits {
		return false
	}
	if n > len(code) {
		n = len(code)
	}
	for i := 0; i < n; i++ {
		if err := sess.FillNth(digitBoxSelector, i, string(code[i])); err != nil {
			return false
		}
	}
	return true
}

// extract snapshots the authenticated context. All or nothing: any failure
// or an empty snapshot discards the attempt.
func (a *Automator) extract(sess Session, req Request, obs Observer) (*models.SessionRecord, error) {
	obs(StateAuthenticated, "success predicate satisfied")
	obs(StateExtracting, "")

	raw, cookies, err := sess.Extract()
	if err != nil {
		return nil, fmt.Errorf("%w: extract: %v", ErrBrowserCrashed, err)
	}
	if len(cookies) == 0 && emptySnapshot(raw) {
		return nil, fmt.Errorf("%w: empty session snapshot", ErrBrowserCrashed)
	}

	return &models.SessionRecord{
		Domain:       req.Domain,
		SourceURL:    req.TargetURL,
		Status:       models.StatusActive,
		CreatedAt:    time.Now().UTC(),
		Cookies:      cookies,
		StorageState: raw,
	}, nil
}

func emptySnapshot(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	var st struct {
		Origins []struct {
			Origin string `json:"origin"`
		} `json:"origins"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return true
	}
	return len(st.Origins) == 0
}

// msUntilDeadline converts ctx's remaining budget to playwright
// milliseconds, or returns fallback when ctx has no deadline
func msUntilDeadline(ctx context.Context, fallback float64) float64 {
	d, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	ms := time.Until(d).Milliseconds()
	if ms < 1 {
		return 1
	}
	return float64(ms)
}
