package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultBasePath is prefixed to every endpoint path.
const DefaultBasePath = "/api/v1"

// DefaultTimeout bounds each request through the underlying transport; no
// explicit per-call cancellation is modeled beyond the caller's context.
const DefaultTimeout = 30 * time.Second

// Client talks to the auth API. Every call flows through the interceptor
// pipeline: the outbound stage injects the bearer token held by the
// Credentials capability, and the inbound stage converts an authorization
// failure on a protected call into a single-flight token refresh followed by
// exactly one retry of the original request.
type Client struct {
	baseURL   string
	basePath  string
	http      *http.Client
	creds     Credentials
	logger    Logger
	userAgent string
	refresh   singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient injects the transport; timeout behavior is whatever this
// client carries.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBasePath overrides the /api/v1 prefix.
func WithBasePath(path string) ClientOption {
	return func(c *Client) {
		c.basePath = "/" + strings.Trim(path, "/")
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the API at baseURL. The Credentials
// capability is injected here, at construction, so the refresh pipeline has
// no post-construction wiring.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, goerrors.New("base URL is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if creds == nil {
		return nil, goerrors.New("credentials capability is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		basePath:  DefaultBasePath,
		creds:     creds,
		logger:    defLogger{},
		userAgent: "go-authclient/1.0",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.http == nil {
		// The refresh credential rides a same-origin cookie; the jar keeps it
		// round-tripping without the client ever reading it.
		jar, _ := cookiejar.New(nil)
		c.http = &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		}
	}

	return c, nil
}

// StartAuth probes whether an account exists for the email and which auth
// path applies next.
func (c *Client) StartAuth(ctx context.Context, payload StartAuthRequest) (*StartAuthResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}
	out := &StartAuthResult{}
	if err := c.do(ctx, http.MethodPost, "/auth/start", payload, out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// Signup creates the account; the verification code is emailed out-of-band.
func (c *Client) Signup(ctx context.Context, payload SignupRequest) (*SignupResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}
	out := &SignupResult{}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", payload, out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// Signin exchanges password credentials for a token pair.
func (c *Client) Signin(ctx context.Context, payload SigninRequest) (*AuthResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}
	out := &AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", payload, out, false); err != nil {
		if IsAuthenticationError(err) {
			return nil, invalidCredentials(err)
		}
		return nil, err
	}
	return out, nil
}

// SigninOTP requests a one-time code; session state does not change.
func (c *Client) SigninOTP(ctx context.Context, payload SigninOTPRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/signin/otp", payload, nil, false)
}

// VerifyOTP exchanges a one-time code for a token pair.
func (c *Client) VerifyOTP(ctx context.Context, payload VerifyOTPRequest) (*AuthResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, validationError(err)
	}
	out := &AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/otp/verify", payload, out, false); err != nil {
		if IsAuthenticationError(err) {
			return nil, invalidCredentials(err)
		}
		return nil, err
	}
	return out, nil
}

// ForgotPassword asks the server to start a password reset.
func (c *Client) ForgotPassword(ctx context.Context, payload ForgotPasswordRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/password/forgot", payload, nil, false)
}

// ResetPassword completes a password reset with an emailed token.
func (c *Client) ResetPassword(ctx context.Context, payload ResetPasswordRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/password/reset", payload, nil, false)
}

// ResendConfirmation re-sends the signup confirmation email.
func (c *Client) ResendConfirmation(ctx context.Context, payload ResendConfirmationRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/confirmation/resend", payload, nil, false)
}

// Logout tells the server to revoke the current token pair. It deliberately
// skips the refresh path: a rejected token during teardown is not worth
// renewing.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
}

// ListSessions returns the caller's remote session records.
func (c *Client) ListSessions(ctx context.Context) ([]RemoteSession, error) {
	out := &sessionsEnvelope{}
	if err := c.do(ctx, http.MethodGet, "/auth/sessions", nil, out, true); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession invalidates one remote session by id.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return validationError(fmt.Errorf("session id is required"))
	}
	path := "/auth/sessions/" + url.PathEscape(sessionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, true)
}

// RevokeAllSessions invalidates every session, potentially including the
// caller's own.
func (c *Client) RevokeAllSessions(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/auth/sessions", nil, nil, true)
}

// ChangePassword is an authenticated password mutation.
func (c *Client) ChangePassword(ctx context.Context, payload ChangePasswordRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/password/change", payload, nil, true)
}

// ChangeEmail is an authenticated email mutation.
func (c *Client) ChangeEmail(ctx context.Context, payload ChangeEmailRequest) error {
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}
	return c.do(ctx, http.MethodPost, "/auth/email/change", payload, nil, true)
}

// CheckUsername reports whether a username is still available. The server
// answers a conflict for taken names; that is an answer, not a failure.
func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, validationError(fmt.Errorf("username is required"))
	}
	out := &usernameAvailability{}
	path := "/auth/username/available?u=" + url.QueryEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, out, false); err != nil {
		if IsConflictError(err) {
			return false, nil
		}
		return false, err
	}
	return out.Available, nil
}

// Refresh exchanges the cookie-held refresh credential for a new token pair.
// It never enters the refresh-retry path itself.
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	out := &AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// do runs one request through the pipeline. protected marks bearer-guarded
// endpoints: only those convert a 401 into refresh-and-retry. A request is
// retried at most once, no matter how the retry fails.
func (c *Client) do(ctx context.Context, method, path string, body, out any, protected bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode request payload")
		}
	}

	token, _ := c.creds.Token()
	retried := false

	for {
		status, respBody, err := c.send(ctx, method, path, payload, token)
		if err != nil {
			return networkError(err, path)
		}

		if status == http.StatusUnauthorized && protected && !retried {
			retried = true
			renewed, rerr := c.refreshToken(ctx)
			if rerr != nil {
				c.logger.Warn("token refresh failed, abandoning session: %v", rerr)
				c.creds.OnRefreshFailure(ctx, rerr)
				return sessionExpired(rerr)
			}
			token = renewed
			continue
		}

		if status < 200 || status >= 300 {
			return apiError(status, respBody, path)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return decodeError(err, path)
			}
		}
		return nil
	}
}

// refreshToken funnels concurrent refresh triggers into one server call; all
// waiters share its outcome.
func (c *Client) refreshToken(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("token-refresh", func() (any, error) {
		return c.creds.Refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.basePath+path, reader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}
