package authclient

import (
	"context"
	"encoding/json"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/syntaxandsips/go-authclient/store"
)

// SessionManager orchestrates login, OTP flows, logout, and the account
// probe. It is the only writer of session state, the token holder, and the
// persisted subset. Operations are not mutually exclusive: overlapping calls
// resolve last-write-wins, but every shared field is guarded so overlap is
// race-free.
type SessionManager struct {
	api    *Client
	tokens *TokenHolder
	store  Persistence
	logger Logger

	mu      sync.RWMutex
	session Session
	pending int
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*SessionManager) *SessionManager

// WithLogger overrides the manager logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *SessionManager) *SessionManager {
		if logger != nil {
			m.logger = logger
		}
		return m
	}
}

// managerCredentials adapts the manager to the Credentials capability the
// pipeline consumes, without exposing refresh-failure handling publicly.
type managerCredentials struct {
	m *SessionManager
}

func (c managerCredentials) Token() (string, bool) {
	return c.m.tokens.Token()
}

func (c managerCredentials) Refresh(ctx context.Context) (string, error) {
	return c.m.RefreshSession(ctx)
}

func (c managerCredentials) OnRefreshFailure(ctx context.Context, err error) {
	c.m.logger.Warn("refresh failed, tearing session down: %v", err)
	if lerr := c.m.Logout(ctx); lerr != nil {
		c.m.logger.Error("logout after refresh failure: %v", lerr)
	}
}

// NewSessionManager builds a manager for the API at baseURL, persisting the
// durable session subset into persistence. A nil persistence falls back to
// an in-memory store. Any persisted identity is hydrated immediately so a
// restarted process resumes its session; the access token is gone after a
// restart and the first protected call renews it through the refresh cookie.
func NewSessionManager(baseURL string, persistence Persistence, opts ...ManagerOption) (*SessionManager, error) {
	m := &SessionManager{
		tokens: NewTokenHolder(),
		store:  persistence,
		logger: defLogger{},
		session: Session{
			Status: StatusAnonymous,
		},
	}

	if m.store == nil {
		m.store = store.NewMemory()
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	api, err := NewClient(baseURL, managerCredentials{m}, WithClientLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.api = api

	m.hydrate(context.Background())

	return m, nil
}

// Client exposes the underlying API client for collaborators (wizard,
// registry) that route their own calls through the shared pipeline.
func (m *SessionManager) Client() *Client {
	return m.api
}

// Token reports the currently held access token.
func (m *SessionManager) Token() (string, bool) {
	return m.tokens.Token()
}

// Session returns a snapshot copy of the current session.
func (m *SessionManager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.session
	if m.session.User != nil {
		user := *m.session.User
		snapshot.User = &user
	}
	return snapshot
}

// IsAuthenticated reports whether a user identity is present.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.IsAuthenticated
}

// StartAuth probes the account state for an email so callers can branch
// between sign-in, social login, and account creation.
func (m *SessionManager) StartAuth(ctx context.Context, email string) (*StartAuthResult, error) {
	m.begin()
	result, err := m.api.StartAuth(ctx, StartAuthRequest{Email: email})
	m.end(err)
	return result, err
}

// Login exchanges credentials for a token pair and authenticates the
// session.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*User, error) {
	m.begin()
	m.setStatus(StatusAuthenticating)

	resp, err := m.api.Signin(ctx, SigninRequest{Email: email, Password: password})
	if err != nil {
		m.setStatus(StatusAnonymous)
		m.end(err)
		return nil, err
	}

	m.applyAuth(ctx, resp)
	m.end(nil)
	return m.CurrentUser(), nil
}

// LoginWithOTP requests a one-time code to be delivered out-of-band. The
// session state does not change.
func (m *SessionManager) LoginWithOTP(ctx context.Context, email string) error {
	m.begin()
	err := m.api.SigninOTP(ctx, SigninOTPRequest{Email: email})
	m.end(err)
	return err
}

// VerifyOTP exchanges a one-time code for a token pair. purpose selects
// between the login and email-verification flows; the session effect is
// identical to Login.
func (m *SessionManager) VerifyOTP(ctx context.Context, email, code string, purpose OTPPurpose) (*User, error) {
	m.begin()
	m.setStatus(StatusAuthenticating)

	resp, err := m.api.VerifyOTP(ctx, VerifyOTPRequest{Email: email, Token: code, Purpose: purpose})
	if err != nil {
		m.setStatus(StatusAnonymous)
		m.end(err)
		return nil, err
	}

	m.applyAuth(ctx, resp)
	m.end(nil)
	return m.CurrentUser(), nil
}

// Signup creates the account from the accumulated wizard payload.
func (m *SessionManager) Signup(ctx context.Context, payload SignupRequest) (*SignupResult, error) {
	m.begin()
	result, err := m.api.Signup(ctx, payload)
	m.end(err)
	return result, err
}

// Logout revokes the token pair server-side on a best-effort basis, then
// unconditionally clears the token holder and persisted state. Calling it
// without an active session is a no-op success.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.begin()

	if _, ok := m.tokens.Token(); ok {
		if err := m.api.Logout(ctx); err != nil {
			m.logger.Warn("server logout failed, tearing down locally: %v", err)
		}
	}

	m.tokens.Clear()
	if err := m.store.Remove(ctx, SessionStorageKey); err != nil && !goerrors.IsNotFound(err) {
		m.logger.Warn("unable to clear persisted session: %v", err)
	}

	m.mu.Lock()
	m.session.User = nil
	m.session.IsAuthenticated = false
	m.session.Status = StatusAnonymous
	m.session.Err = nil
	m.mu.Unlock()

	m.end(nil)
	return nil
}

// RefreshSession exchanges the server-held refresh credential for a new
// access token. The pipeline funnels concurrent triggers into a single
// call, so at most one exchange reaches the server per refresh cycle.
func (m *SessionManager) RefreshSession(ctx context.Context) (string, error) {
	m.begin()
	m.setStatus(StatusRefreshing)

	resp, err := m.api.Refresh(ctx)
	if err != nil {
		// Terminal teardown happens in OnRefreshFailure when the pipeline
		// drove the refresh; direct callers keep their identity until the
		// server rejects a protected call.
		if m.IsAuthenticated() {
			m.setStatus(StatusAuthenticated)
		} else {
			m.setStatus(StatusAnonymous)
		}
		m.end(err)
		return "", err
	}

	m.applyAuth(ctx, resp)
	m.end(nil)
	return resp.AccessToken, nil
}

// ChangePassword is an authenticated mutation; it fails without a held
// token and surfaces server validation verbatim.
func (m *SessionManager) ChangePassword(ctx context.Context, payload ChangePasswordRequest) error {
	if _, ok := m.tokens.Token(); !ok {
		return ErrUnauthenticated
	}
	m.begin()
	err := m.api.ChangePassword(ctx, payload)
	m.end(err)
	return err
}

// ChangeEmail is an authenticated mutation; it fails without a held token
// and surfaces server validation verbatim.
func (m *SessionManager) ChangeEmail(ctx context.Context, payload ChangeEmailRequest) error {
	if _, ok := m.tokens.Token(); !ok {
		return ErrUnauthenticated
	}
	m.begin()
	err := m.api.ChangeEmail(ctx, payload)
	m.end(err)
	return err
}

// ForgotPassword starts the password-reset flow.
func (m *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	m.begin()
	err := m.api.ForgotPassword(ctx, ForgotPasswordRequest{Email: email})
	m.end(err)
	return err
}

// ResetPassword completes a password reset with an emailed token.
func (m *SessionManager) ResetPassword(ctx context.Context, payload ResetPasswordRequest) error {
	m.begin()
	err := m.api.ResetPassword(ctx, payload)
	m.end(err)
	return err
}

// ResendConfirmation re-sends the signup confirmation email.
func (m *SessionManager) ResendConfirmation(ctx context.Context, email string) error {
	m.begin()
	err := m.api.ResendConfirmation(ctx, ResendConfirmationRequest{Email: email})
	m.end(err)
	return err
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *SessionManager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.User == nil {
		return nil
	}
	user := *m.session.User
	return &user
}

// applyAuth installs a token-minting response: replace the token, replace
// the user wholesale, persist the durable subset.
func (m *SessionManager) applyAuth(ctx context.Context, resp *AuthResponse) {
	m.tokens.Set(resp.AccessToken)

	m.mu.Lock()
	m.session.User = resp.User
	m.session.IsAuthenticated = resp.User != nil
	if m.session.IsAuthenticated {
		m.session.Status = StatusAuthenticated
	} else {
		m.session.Status = StatusAnonymous
	}
	m.mu.Unlock()

	m.persist(ctx)
}

func (m *SessionManager) persist(ctx context.Context) {
	m.mu.RLock()
	state := persistedSession{
		User:            m.session.User,
		IsAuthenticated: m.session.IsAuthenticated,
	}
	m.mu.RUnlock()

	payload, err := json.Marshal(state)
	if err != nil {
		m.logger.Error("unable to encode persisted session: %v", err)
		return
	}
	if err := m.store.Set(ctx, SessionStorageKey, payload); err != nil {
		m.logger.Warn("unable to persist session: %v", err)
	}
}

func (m *SessionManager) hydrate(ctx context.Context) {
	payload, err := m.store.Get(ctx, SessionStorageKey)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			m.logger.Warn("unable to read persisted session: %v", err)
		}
		return
	}

	var state persistedSession
	if err := json.Unmarshal(payload, &state); err != nil {
		m.logger.Warn("discarding corrupt persisted session: %v", err)
		return
	}

	if state.User == nil || !state.IsAuthenticated {
		return
	}

	m.mu.Lock()
	m.session.User = state.User
	m.session.IsAuthenticated = true
	m.session.Status = StatusAuthenticated
	m.mu.Unlock()
}

func (m *SessionManager) begin() {
	m.mu.Lock()
	m.pending++
	m.session.IsLoading = true
	m.mu.Unlock()
}

// end clears the loading flag when the last pending operation settles and
// records the operation fault. Local validation failures are resolved by
// the issuing caller and never recorded as session faults.
func (m *SessionManager) end(err error) {
	m.mu.Lock()
	m.pending--
	m.session.IsLoading = m.pending > 0
	if err != nil && IsValidationError(err) {
		err = nil
	}
	m.session.Err = err
	m.mu.Unlock()
}

func (m *SessionManager) setStatus(to Status) {
	m.mu.Lock()
	from := m.session.Status
	if !canTransition(from, to) {
		m.logger.Debug("session status forced %s -> %s", from, to)
	}
	m.session.Status = to
	m.mu.Unlock()
}
