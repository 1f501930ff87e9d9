package gate

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jon4hz/botconsole/internal/database/mock"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/stretchr/testify/require"
)

const browserID = "browser-1"

type fakeBackend struct {
	mu sync.Mutex

	// sessions maps one-time tokens to the session they issue. Tokens are consumed on use.
	sessions map[string]*platform.Session
	// status is the setup status per bearer token.
	status     map[string]bool
	statusErr  error
	statusGate chan struct{}
	setupErr   error
	password   string
	verifyErr  error
	logoutErr  error
	onLogin    func()
	onLogout   func()

	loginCalls  int
	statusCalls int
	setupCalls  int
	verifyCalls int
	logoutCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions: map[string]*platform.Session{
			"T1": {User: platform.User{ID: 42, Username: "alice", FirstName: "Alice", Role: "Admin"}, Token: "bearer-1"},
			"T2": {User: platform.User{ID: 7, Username: "bob", Role: "viewer"}, Token: "bearer-2"},
		},
		status: map[string]bool{},
	}
}

func (f *fakeBackend) Login(_ context.Context, token string) (*platform.Session, error) {
	if f.onLogin != nil {
		f.onLogin()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	sess, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", platform.ErrInvalidToken)
	}
	delete(f.sessions, token)
	cp := *sess
	return &cp, nil
}

func (f *fakeBackend) CloudPasswordStatus(ctx context.Context, bearer string) (bool, error) {
	f.mu.Lock()
	gate := f.statusGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return false, f.statusErr
	}
	return f.status[bearer], nil
}

func (f *fakeBackend) SetupCloudPassword(_ context.Context, bearer, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls++
	if f.setupErr != nil {
		return f.setupErr
	}
	f.password = password
	f.status[bearer] = true
	return nil
}

func (f *fakeBackend) VerifyCloudPassword(_ context.Context, _, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if password != f.password {
		return fmt.Errorf("%w: %w", platform.ErrWrongPassword, &platform.APIError{StatusCode: 401, Detail: "Invalid password"})
	}
	return nil
}

func (f *fakeBackend) Logout(context.Context, string) error {
	if f.onLogout != nil {
		f.onLogout()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeBackend) calls() (login, status, setup, verify, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.statusCalls, f.setupCalls, f.verifyCalls, f.logoutCalls
}

// holdStatus blocks status checks until the returned function is called.
func (f *fakeBackend) holdStatus(t *testing.T) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	f.mu.Lock()
	f.statusGate = gate
	f.mu.Unlock()
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}

type fakeLocation struct {
	mu       sync.Mutex
	current  *url.URL
	replaced int
}

func newLocation(t *testing.T, raw string) *fakeLocation {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return &fakeLocation{current: u}
}

func (l *fakeLocation) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l.current
	return &cp
}

func (l *fakeLocation) Replace(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = u
	l.replaced++
}

func (l *fakeLocation) String() string {
	return l.URL().String()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	backend *fakeBackend
	db      *mock.MockDB
	store   *session.Store
	clock   *fakeClock
}

func newHarness() *harness {
	db := mock.NewMockDB()
	return &harness{
		backend: newFakeBackend(),
		db:      db,
		store:   session.NewStore(db, browserID),
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func (h *harness) newOrchestrator(opts Options) *Orchestrator {
	opts.Now = h.clock.Now
	return New(h.store, h.backend, opts)
}

// persist writes a session as a previous page load would have left it.
func (h *harness) persist(user platform.User, token string, verified bool) {
	ctx := context.Background()
	h.store.Save(ctx, user, token)
	if verified {
		h.store.SaveVerified(ctx)
	}
}

func waitStatus(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.WaitStatus(ctx))
}
