package authclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeSessionExpired     = "SESSION_EXPIRED"
	textCodeNetworkFailure     = "NETWORK_FAILURE"
	textCodeUsernameTaken      = "USERNAME_TAKEN"
	textCodeAccountExists      = "ACCOUNT_EXISTS"
	textCodeRevokeCurrent      = "REVOKE_CURRENT_SESSION"
)

// ErrUnauthenticated is returned by operations that require a held access
// token when none is present.
var ErrUnauthenticated = goerrors.New("no authenticated session", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned when the server rejects a login or OTP
// exchange.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is surfaced to the original caller when a token refresh
// fails terminally and the session is torn down.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrRevokeCurrentSession is returned when a caller attempts to revoke the
// session flagged as current through the single-session path.
var ErrRevokeCurrentSession = goerrors.New("cannot revoke the current session", goerrors.CategoryConflict).
	WithTextCode(textCodeRevokeCurrent).
	WithCode(goerrors.CodeConflict)

// IsValidationError reports whether err is a local schema failure that never
// reached the network.
func IsValidationError(err error) bool {
	return hasCategory(err, goerrors.CategoryValidation)
}

// IsAuthenticationError reports whether err represents rejected credentials
// or a terminally expired session.
func IsAuthenticationError(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

// IsConflictError reports whether err is a server-reported conflict such as
// a taken username or an already registered email.
func IsConflictError(err error) bool {
	return hasCategory(err, goerrors.CategoryConflict)
}

// IsNetworkError reports whether err is a transport or connectivity failure.
func IsNetworkError(err error) bool {
	return hasCategory(err, goerrors.CategoryOperation)
}

// IsRateLimitError reports whether the server throttled the request.
func IsRateLimitError(err error) bool {
	return hasCategory(err, goerrors.CategoryRateLimit)
}

// IsServerError reports whether the server answered with a 5xx.
func IsServerError(err error) bool {
	return hasCategory(err, goerrors.CategoryInternal)
}

func hasCategory(err error, category goerrors.Category) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == category
}

// invalidCredentials tags a rejected credential exchange with the
// ErrInvalidCredentials sentinel. The server's reason replaces the message
// so callers still see it verbatim; the sentinel stays in the chain for
// errors.Is.
func invalidCredentials(cause error) error {
	clone := ErrInvalidCredentials.Clone()
	if clone == nil {
		return ErrInvalidCredentials
	}
	clone.Source = ErrInvalidCredentials
	var rich *goerrors.Error
	if goerrors.As(cause, &rich) && rich.Message != "" {
		clone.Message = rich.Message
	}
	return clone.WithMetadata(map[string]any{"cause": cause.Error()})
}

// sessionExpired tags a terminal refresh failure with the ErrSessionExpired
// sentinel, keeping the refresh failure as the reported cause.
func sessionExpired(cause error) error {
	clone := ErrSessionExpired.Clone()
	if clone == nil {
		return ErrSessionExpired
	}
	clone.Source = ErrSessionExpired
	return clone.WithMetadata(map[string]any{"cause": cause.Error()})
}

func validationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "validation failed").
		WithCode(goerrors.CodeBadRequest)
}

func networkError(err error, path string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed").
		WithTextCode(textCodeNetworkFailure).
		WithMetadata(map[string]any{"path": path})
}

// apiErrorBody is the error envelope the backend returns on non-2xx.
type apiErrorBody struct {
	Detail string `json:"detail"`
}

// apiError maps a non-2xx response to the client taxonomy. Messages are
// preserved verbatim so callers see the server-reported reason.
func apiError(status int, body []byte, path string) error {
	message := http.StatusText(status)
	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		message = envelope.Detail
	}

	var category goerrors.Category
	code := status
	switch {
	case status == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case status == http.StatusForbidden:
		category = goerrors.CategoryAuth
	case status == http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case status == http.StatusConflict:
		category = goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	case status >= 500:
		category = goerrors.CategoryInternal
	default:
		category = goerrors.CategoryBadInput
	}

	return goerrors.New(message, category).
		WithCode(code).
		WithMetadata(map[string]any{
			"status": status,
			"path":   path,
		})
}

func decodeError(err error, path string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("unable to decode response from %s", path))
}
