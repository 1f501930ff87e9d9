// Package gate is the session bootstrap and authentication gate of the console.
//
// An Orchestrator owns the authentication state of one browser. It consumes the one-time login
// token of the URL, hydrates the persisted session, confirms the cloud password setup status with
// the platform in the background and exposes the transitions a user can trigger. The view to
// render is always derived from its state through Resolve and Select.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/jon4hz/botconsole/internal/session"
)

// SessionStore persists the session of one browser. Writes never fail from the caller's point of view.
type SessionStore interface {
	Save(ctx context.Context, user platform.User, token string)
	SaveVerified(ctx context.Context)
	Clear(ctx context.Context)
	Load(ctx context.Context) (*session.Record, bool)
}

// Backend is the platform the orchestrator authenticates against.
type Backend interface {
	Login(ctx context.Context, oneTimeToken string) (*platform.Session, error)
	CloudPasswordStatus(ctx context.Context, bearer string) (bool, error)
	SetupCloudPassword(ctx context.Context, bearer, password string) error
	VerifyCloudPassword(ctx context.Context, bearer, password string) error
	Logout(ctx context.Context, bearer string) error
}

// Location is the address the browser is currently showing.
type Location interface {
	URL() *url.URL
	// Replace swaps the current address without adding a history entry.
	Replace(u *url.URL)
}

// Options tunes an Orchestrator.
type Options struct {
	// LoginParam is the query parameter carrying the one-time login token.
	LoginParam string
	// MinPasswordLength is the minimum length of a new cloud password.
	MinPasswordLength int
	// StatusTimeout bounds the background setup status check.
	StatusTimeout time.Duration
	// MaxVerifyAttempts is the number of consecutive wrong passwords before verification is locked. 0 disables it.
	MaxVerifyAttempts int
	// VerifyCooldown is how long verification stays locked.
	VerifyCooldown time.Duration
	// Now returns the current time.
	Now func() time.Time
	// Logger is the logger of the orchestrator.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.LoginParam == "" {
		o.LoginParam = "token"
	}
	if o.MinPasswordLength <= 0 {
		o.MinPasswordLength = 8
	}
	if o.StatusTimeout <= 0 {
		o.StatusTimeout = 10 * time.Second
	}
	if o.MaxVerifyAttempts < 0 {
		o.MaxVerifyAttempts = 0
	}
	if o.MaxVerifyAttempts > 0 && o.VerifyCooldown <= 0 {
		o.VerifyCooldown = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.WithPrefix("gate")
	}
}

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	Tuple
	State State
	View  View
	// Profile is nil without a user.
	Profile    *Profile
	SignedInAt time.Time
	// ExchangeErr is set when the last login token could not be exchanged.
	ExchangeErr error
	// StatusErr is set when the setup status could not be confirmed and NotSetUp was assumed.
	StatusErr      error
	FailedAttempts int
	LockedUntil    time.Time
}

// Orchestrator is the authentication state machine of one browser.
// All mutations go through its transition methods; it is safe for concurrent use.
type Orchestrator struct {
	store   SessionStore
	backend Backend
	opts    Options
	log     *log.Logger

	mu          sync.Mutex
	generation  uint64
	booting     bool
	user        *platform.User
	token       string
	setup       SetupStatus
	verified    bool
	signedInAt  time.Time
	exchangeErr error
	statusErr   error
	statusDone  chan struct{}

	failedAttempts int
	lockedUntil    time.Time
}

// New creates an orchestrator. It reports Loading until Bootstrap has run.
func New(store SessionStore, backend Backend, opts Options) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{
		store:   store,
		backend: backend,
		opts:    opts,
		log:     opts.Logger,
		booting: true,
	}
}

// Bootstrap mounts the orchestrator on the given location.
//
// A login token in the URL is stripped through loc.Replace before it is exchanged, so it is
// consumed at most once. Without a token the persisted session is hydrated. Both paths start
// the background setup status check.
func (o *Orchestrator) Bootstrap(ctx context.Context, loc Location) error {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.resetLocked()
	o.booting = true
	o.mu.Unlock()

	if token, ok := o.takeLoginToken(loc); ok {
		return o.exchange(ctx, gen, token)
	}
	return o.hydrate(ctx, gen)
}

// takeLoginToken removes the login parameter from the location and returns its value.
func (o *Orchestrator) takeLoginToken(loc Location) (string, bool) {
	if loc == nil {
		return "", false
	}
	current := loc.URL()
	if current == nil {
		return "", false
	}
	query := current.Query()
	if !query.Has(o.opts.LoginParam) {
		return "", false
	}

	token := strings.TrimSpace(query.Get(o.opts.LoginParam))
	query.Del(o.opts.LoginParam)
	stripped := *current
	stripped.RawQuery = query.Encode()
	loc.Replace(&stripped)

	return token, token != ""
}

func (o *Orchestrator) exchange(ctx context.Context, gen uint64, token string) error {
	sess, err := o.backend.Login(ctx, token)
	if err == nil && (sess == nil || !sess.User.Valid() || sess.Token == "") {
		err = errors.New("incomplete session")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return ErrSuperseded
	}
	o.booting = false

	if err != nil {
		o.log.Warn("Login token exchange failed", "error", err)
		o.store.Clear(ctx)
		o.resetLocked()
		o.exchangeErr = fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
		return o.exchangeErr
	}

	user := sess.User
	o.user = &user
	o.token = sess.Token
	o.signedInAt = o.opts.Now()
	o.failedAttempts = 0
	o.lockedUntil = time.Time{}
	o.store.Save(ctx, user, sess.Token)
	o.log.Info("User signed in", "user_id", user.ID)

	o.startStatusCheckLocked(ctx, gen)
	return nil
}

func (o *Orchestrator) hydrate(ctx context.Context, gen uint64) error {
	record, ok := o.store.Load(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return ErrSuperseded
	}
	o.booting = false
	if !ok {
		return nil
	}

	user := *record.User
	o.user = &user
	o.token = record.Token
	o.verified = *record.Verified
	o.signedInAt = record.SignedInAt
	o.log.Debug("Hydrated persisted session", "user_id", user.ID, "verified", o.verified)

	// the setup status is always confirmed with the server, even for a verified session
	o.startStatusCheckLocked(ctx, gen)
	return nil
}

// startStatusCheckLocked queries the setup status in the background.
// The check outlives the request that triggered it.
func (o *Orchestrator) startStatusCheckLocked(ctx context.Context, gen uint64) {
	done := make(chan struct{})
	o.statusDone = done
	token := o.token
	parent := context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		checkCtx, cancel := context.WithTimeout(parent, o.opts.StatusTimeout)
		defer cancel()

		isSetup, err := o.backend.CloudPasswordStatus(checkCtx, token)
		o.applyStatus(gen, isSetup, err)
	}()
}

// applyStatus records the answer of a status check. Stale answers are dropped and the
// verified flag is never touched.
func (o *Orchestrator) applyStatus(gen uint64, isSetup bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation || o.setup != SetupUnknown {
		o.log.Debug("Dropping stale setup status")
		return
	}
	if err != nil {
		o.log.Warn("Could not confirm cloud password status, assuming none is set up", "error", err)
		o.setup = SetupNotSetUp
		o.statusErr = fmt.Errorf("%w: %w", ErrStatusCheckFailed, err)
		return
	}
	if isSetup {
		o.setup = SetupSetUp
	} else {
		o.setup = SetupNotSetUp
	}
}

// WaitStatus blocks until the current background status check has settled.
func (o *Orchestrator) WaitStatus(ctx context.Context) error {
	o.mu.Lock()
	done := o.statusDone
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitSetup creates the cloud password. It is only allowed in NeedsSetup.
func (o *Orchestrator) SubmitSetup(ctx context.Context, password, confirm string) error {
	o.mu.Lock()
	if o.stateLocked() != StateNeedsSetup {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	gen, token := o.generation, o.token
	o.mu.Unlock()

	if err := o.validateNewPassword(password, confirm); err != nil {
		return err
	}

	if err := o.backend.SetupCloudPassword(ctx, token, password); err != nil {
		o.log.Warn("Cloud password setup rejected", "error", err)
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return ErrSuperseded
	}
	o.setup = SetupSetUp
	o.verified = true
	o.statusErr = nil
	o.store.SaveVerified(ctx)
	o.log.Info("Cloud password set up", "user_id", o.user.ID)
	return nil
}

func (o *Orchestrator) validateNewPassword(password, confirm string) error {
	switch {
	case password == "":
		return ErrPasswordRequired
	case len([]rune(password)) < o.opts.MinPasswordLength:
		return fmt.Errorf("%w (minimum %d characters)", ErrPasswordTooShort, o.opts.MinPasswordLength)
	case password != confirm:
		return ErrPasswordMismatch
	}
	return nil
}

// SubmitVerify proves the cloud password for this session. It is only allowed in NeedsVerification.
func (o *Orchestrator) SubmitVerify(ctx context.Context, password string) error {
	o.mu.Lock()
	if o.stateLocked() != StateNeedsVerification {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	if o.opts.Now().Before(o.lockedUntil) {
		o.mu.Unlock()
		return ErrTooManyAttempts
	}
	gen, token := o.generation, o.token
	o.mu.Unlock()

	if password == "" {
		return ErrPasswordRequired
	}

	err := o.backend.VerifyCloudPassword(ctx, token, password)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return ErrSuperseded
	}
	if err != nil {
		o.log.Warn("Cloud password verification failed", "user_id", o.user.ID, "error", err)
		o.registerFailureLocked(err)
		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	o.failedAttempts = 0
	o.lockedUntil = time.Time{}
	o.verified = true
	o.store.SaveVerified(ctx)
	o.log.Info("Cloud password verified", "user_id", o.user.ID)
	return nil
}

// registerFailureLocked counts wrong passwords and starts the cooldown once the limit is hit.
// Transport and server errors are not counted.
func (o *Orchestrator) registerFailureLocked(err error) {
	if o.opts.MaxVerifyAttempts == 0 || !errors.Is(err, platform.ErrWrongPassword) {
		return
	}
	o.failedAttempts++
	if o.failedAttempts >= o.opts.MaxVerifyAttempts {
		o.lockedUntil = o.opts.Now().Add(o.opts.VerifyCooldown)
		o.failedAttempts = 0
		o.log.Warn("Cloud password verification locked", "user_id", o.user.ID, "until", o.lockedUntil)
	}
}

// SignOut ends the session. It is only allowed in Authenticated.
// The platform logout is best-effort; the local session is cleared unless a newer
// session was mounted while the logout was in flight.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.mu.Lock()
	if o.stateLocked() != StateAuthenticated {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.generation++
	gen, token, userID := o.generation, o.token, o.user.ID
	o.mu.Unlock()

	if err := o.backend.Logout(ctx, token); err != nil {
		o.log.Warn("Platform logout failed, clearing the local session anyway", "error", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// a newer session owns the persisted record now
	if gen != o.generation {
		o.log.Debug("Sign out superseded, keeping the newer session", "user_id", userID)
		return ErrSuperseded
	}
	o.store.Clear(context.WithoutCancel(ctx))
	o.resetLocked()
	o.failedAttempts = 0
	o.lockedUntil = time.Time{}
	o.log.Info("User signed out", "user_id", userID)
	return nil
}

// resetLocked drops the in-memory session. Attempt counters survive so a re-mount cannot skip a cooldown.
func (o *Orchestrator) resetLocked() {
	o.booting = false
	o.user = nil
	o.token = ""
	o.setup = SetupUnknown
	o.verified = false
	o.signedInAt = time.Time{}
	o.exchangeErr = nil
	o.statusErr = nil
	o.statusDone = nil
}

func (o *Orchestrator) tupleLocked() Tuple {
	return Tuple{
		Booting:  o.booting,
		HasUser:  o.user != nil,
		Setup:    o.setup,
		Verified: o.verified,
	}
}

func (o *Orchestrator) stateLocked() State {
	return Resolve(o.tupleLocked())
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Snapshot returns a consistent copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	tuple := o.tupleLocked()
	state := Resolve(tuple)
	snap := Snapshot{
		Tuple:          tuple,
		State:          state,
		View:           Select(state),
		SignedInAt:     o.signedInAt,
		ExchangeErr:    o.exchangeErr,
		StatusErr:      o.statusErr,
		FailedAttempts: o.failedAttempts,
	}
	if o.opts.Now().Before(o.lockedUntil) {
		snap.LockedUntil = o.lockedUntil
	}
	if o.user != nil {
		profile := NewProfile(*o.user)
		snap.Profile = &profile
	}
	return snap
}

// Profile returns the profile of the current user.
func (o *Orchestrator) Profile() (Profile, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user == nil {
		return Profile{}, false
	}
	return NewProfile(*o.user), true
}

// IsAuthenticated reports whether the session is fully authenticated.
func (o *Orchestrator) IsAuthenticated() bool {
	return o.State() == StateAuthenticated
}

// Token returns the bearer token. It is empty unless the session is fully authenticated.
func (o *Orchestrator) Token() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stateLocked() != StateAuthenticated {
		return ""
	}
	return o.token
}

// compile-time check
var _ platform.TokenSource = (*Orchestrator)(nil)
