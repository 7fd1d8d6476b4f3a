package authclient

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package needs. Inject your own
// with the With*Logger options; the default prints to stdout.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Persistence is the durable key-value capability the session manager
// mirrors its persisted state into. Get returns a NotFound-category error
// for absent keys.
type Persistence interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// TokenSource supplies the current bearer access token to outbound requests.
type TokenSource interface {
	Token() (string, bool)
}

// Credentials is the capability the interceptor pipeline uses to read,
// renew, and abandon the session's token. It is injected at Client
// construction so the dependency is explicit and substitutable in tests.
type Credentials interface {
	TokenSource
	// Refresh exchanges the server-held refresh credential for a new access
	// token. Concurrent callers share in-flight refreshes; implementations
	// only ever see one call per refresh cycle.
	Refresh(ctx context.Context) (string, error)
	// OnRefreshFailure is invoked once when a refresh cycle fails terminally,
	// before the failure is surfaced to the original caller.
	OnRefreshFailure(ctx context.Context, err error)
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
