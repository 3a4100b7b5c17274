package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssokeeper/ssokeeper/internal/login"
	"github.com/ssokeeper/ssokeeper/internal/ratelimit"
	"github.com/ssokeeper/ssokeeper/internal/store"
	"github.com/ssokeeper/ssokeeper/pkg/models"
)

func testRecord(domain string) *models.SessionRecord {
	return &models.SessionRecord{
		Domain:    domain,
		SourceURL: "https://" + domain + "/home",
		Status:    models.StatusActive,
		CreatedAt: time.Now().UTC(),
		Cookies: []models.Cookie{
			{Name: "sid", Value: "opaque", Domain: domain, Path: "/"},
		},
		StorageState: json.RawMessage(`{"cookies":[],"origins":[{"origin":"https://` + domain + `"}]}`),
	}
}

// fakeRunner scripts login outcomes. When release is set, Login parks until
// the channel closes, letting tests hold the domain lock open.
type fakeRunner struct {
	mu      sync.Mutex
	reqs    []login.Request
	seeds   [][]byte
	err     error
	states  []login.State
	entered chan struct{}
	release chan struct{}
}

func (r *fakeRunner) Login(ctx context.Context, req login.Request, obs login.Observer) (*models.SessionRecord, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	if req.StorageStatePath != "" {
		if data, err := os.ReadFile(req.StorageStatePath); err == nil {
			r.seeds = append(r.seeds, data)
		}
	}
	err := r.err
	states := r.states
	r.mu.Unlock()

	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, login.ErrTimeout
		}
	}

	for _, s := range states {
		obs(s, "")
	}
	if err != nil {
		return nil, err
	}
	return testRecord(req.Domain), nil
}

func (r *fakeRunner) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *fakeRunner) requests() []login.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]login.Request(nil), r.reqs...)
}

type fakeChecker struct {
	verdict Verdict
	onCheck func(rec *models.SessionRecord)
}

func (c *fakeChecker) Check(_ context.Context, rec *models.SessionRecord) Verdict {
	if c.onCheck != nil {
		c.onCheck(rec)
	}
	return c.verdict
}

func newTestManager(t *testing.T, runner LoginRunner, checker Checker) (*Manager, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	if checker == nil {
		checker = &fakeChecker{verdict: VerdictUnknown}
	}
	m := NewManager(runner, checker, st, NewKeyring(),
		ratelimit.NewLimiter(6000, 100), NewHub(), Limits{})
	return m, st
}

func TestLoginPersistsRecordAndPublishesDone(t *testing.T) {
	runner := &fakeRunner{states: []login.State{
		login.StateNavigating, login.StateAwaitingAuth,
		login.StateAuthenticated, login.StateExtracting,
	}}
	m, st := newTestManager(t, runner, nil)

	events, cancel, err := m.Subscribe("portal.example.com")
	require.NoError(t, err)
	defer cancel()

	rec, err := m.Login(context.Background(), models.LoginRequest{URL: "https://Portal.Example.com/home"})
	require.NoError(t, err)
	assert.Equal(t, "portal.example.com", rec.Domain)

	stored, err := st.Load("portal.example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.NotEmpty(t, stored.Cookies)

	var states []string
	for len(events) > 0 {
		states = append(states, (<-events).State)
	}
	require.NotEmpty(t, states)
	assert.Equal(t, "done", states[len(states)-1])
	assert.Equal(t, []string{"navigating", "awaiting_auth", "authenticated", "extracting", "done"}, states)
}

func TestLoginConcurrentSameDomainConflicts(t *testing.T) {
	runner := &fakeRunner{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(t, runner, nil)

	req := models.LoginRequest{URL: "https://portal.example.com/home"}

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), req)
		firstDone <- err
	}()
	<-runner.entered // the first attempt holds the lock now

	_, err := m.Login(context.Background(), req)
	require.ErrorIs(t, err, ErrLoginInProgress)

	close(runner.release)
	require.NoError(t, <-firstDone)

	// lock released after completion
	runner.release = nil
	runner.entered = nil
	_, err = m.Login(context.Background(), req)
	require.NoError(t, err)
}

func TestLoginFailureReleasesLock(t *testing.T) {
	runner := &fakeRunner{}
	runner.setErr(login.ErrTimeout)
	m, st := newTestManager(t, runner, nil)

	req := models.LoginRequest{URL: "https://portal.example.com/home", TimeoutSeconds: 5}
	_, err := m.Login(context.Background(), req)
	require.ErrorIs(t, err, login.ErrTimeout)

	// nothing persisted on failure
	_, err = st.Load("portal.example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	// an immediate retry does not hit a stale lock
	runner.setErr(nil)
	_, err = m.Login(context.Background(), req)
	require.NoError(t, err)
}

func TestLoginFailurePublishesFailedEvent(t *testing.T) {
	runner := &fakeRunner{states: []login.State{login.StateNavigating}}
	runner.setErr(login.ErrNavigationFailed)
	m, _ := newTestManager(t, runner, nil)

	events, cancel, err := m.Subscribe("portal.example.com")
	require.NoError(t, err)
	defer cancel()

	_, err = m.Login(context.Background(), models.LoginRequest{URL: "https://portal.example.com/"})
	require.ErrorIs(t, err, login.ErrNavigationFailed)

	var last models.ProgressEvent
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, "failed", last.State)
}

func TestLoginRateLimited(t *testing.T) {
	runner := &fakeRunner{}
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(runner, &fakeChecker{}, st, NewKeyring(),
		ratelimit.NewLimiter(0.01, 1), NewHub(), Limits{})

	req := models.LoginRequest{URL: "https://portal.example.com/home"}
	_, err = m.Login(context.Background(), req)
	require.NoError(t, err)

	_, err = m.Login(context.Background(), req)
	require.ErrorIs(t, err, ratelimit.ErrLimited)
	assert.Len(t, runner.requests(), 1, "limited attempt never reached the automator")
}

func TestLoginInvalidURL(t *testing.T) {
	m, _ := newTestManager(t, &fakeRunner{}, nil)

	_, err := m.Login(context.Background(), models.LoginRequest{URL: "   "})
	require.ErrorIs(t, err, models.ErrInvalidDomain)
}

func TestLoginResumeSeedsStorageState(t *testing.T) {
	runner := &fakeRunner{}
	m, st := newTestManager(t, runner, nil)

	stale := testRecord("portal.example.com")
	stale.Status = models.StatusExpired
	require.NoError(t, st.Save(stale))

	_, err := m.Login(context.Background(), models.LoginRequest{
		URL:    "https://portal.example.com/home",
		Resume: true,
	})
	require.NoError(t, err)

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	require.NotEmpty(t, reqs[0].StorageStatePath)
	require.Len(t, runner.seeds, 1)
	assert.JSONEq(t, string(stale.StorageState), string(runner.seeds[0]))

	// the staged seed is cleaned up after the attempt
	_, err = os.Stat(reqs[0].StorageStatePath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCheckReflectsDecisiveUpdate(t *testing.T) {
	m, st := newTestManager(t, &fakeRunner{}, nil)

	rec := testRecord("portal.example.com")
	require.NoError(t, st.Save(rec))

	// the checker persists its verdict, the way the real validator does
	checker := &fakeChecker{verdict: VerdictInvalid}
	checker.onCheck = func(r *models.SessionRecord) {
		now := time.Now().UTC()
		r.Status = models.StatusExpired
		r.LastValidatedAt = &now
		require.NoError(t, st.Save(r))
	}
	m.checker = checker

	res, err := m.Check(context.Background(), "portal.example.com")
	require.NoError(t, err)
	assert.Equal(t, "invalid", res.Probe)
	assert.Equal(t, models.StatusExpired, res.Status)
	require.NotNil(t, res.LastValidatedAt)
}

func TestCheckUnknownKeepsStoredStatus(t *testing.T) {
	m, st := newTestManager(t, &fakeRunner{}, &fakeChecker{verdict: VerdictUnknown})

	rec := testRecord("portal.example.com")
	require.NoError(t, st.Save(rec))

	res, err := m.Check(context.Background(), "portal.example.com")
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.Probe)
	assert.Equal(t, models.StatusActive, res.Status)
	assert.Nil(t, res.LastValidatedAt)
}

func TestCheckNotFound(t *testing.T) {
	m, _ := newTestManager(t, &fakeRunner{}, nil)

	_, err := m.Check(context.Background(), "absent.example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCorruptRecordSurfacesAsNotFound(t *testing.T) {
	m, st := newTestManager(t, &fakeRunner{}, nil)

	path := st.Path("portal.example.com")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := m.Cookies("portal.example.com", "")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = m.Check(context.Background(), "portal.example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	// the corrupt file is left in place for inspection
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestCookiesFilter(t *testing.T) {
	m, st := newTestManager(t, &fakeRunner{}, nil)

	rec := testRecord("portal.example.com")
	rec.Cookies = []models.Cookie{
		{Name: "sid", Value: "a", Domain: ".example.com", Path: "/"},
		{Name: "okta-sid", Value: "b", Domain: "corp.okta.com", Path: "/"},
	}
	require.NoError(t, st.Save(rec))

	all, err := m.Cookies("portal.example.com", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := m.Cookies("portal.example.com", "OKTA")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "okta-sid", filtered[0].Name)
}

func TestDeleteIdempotent(t *testing.T) {
	m, st := newTestManager(t, &fakeRunner{}, nil)
	require.NoError(t, st.Save(testRecord("portal.example.com")))

	deleted, err := m.Delete("portal.example.com")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.Delete("portal.example.com")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestClampTimeout(t *testing.T) {
	m, _ := newTestManager(t, &fakeRunner{}, nil)

	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, 120 * time.Second},   // default
		{1, 5 * time.Second},     // floor
		{60, 60 * time.Second},   // as requested
		{900, 300 * time.Second}, // ceiling
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, m.clampTimeout(tc.seconds), "seconds=%d", tc.seconds)
	}
}
