package authclient

import (
	"context"
	"sync"
)

// Registry enumerates and revokes the remote sessions tracked by the
// server. Its cached view is only ever replaced by server responses; it is
// never mutated speculatively.
type Registry struct {
	manager *SessionManager
	logger  Logger

	mu   sync.RWMutex
	view []RemoteSession
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger overrides the registry logger.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry builds a registry over the manager's client.
func NewRegistry(manager *SessionManager, opts ...RegistryOption) *Registry {
	r := &Registry{
		manager: manager,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// List fetches the caller's remote session records. Without a held token
// there is nothing to show: it returns an empty set, not an error.
func (r *Registry) List(ctx context.Context) ([]RemoteSession, error) {
	if _, ok := r.manager.Token(); !ok {
		r.setView(nil)
		return []RemoteSession{}, nil
	}

	sessions, err := r.manager.Client().ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	r.setView(sessions)
	return r.View(), nil
}

// Revoke invalidates one remote session and re-fetches the listing so the
// view reflects the server, not an optimistic guess. The session flagged as
// current is refused; revoking yourself goes through RevokeAll or Logout.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	if current, ok := r.currentSession(); ok && current.ID == sessionID {
		return ErrRevokeCurrentSession
	}

	if err := r.manager.Client().RevokeSession(ctx, sessionID); err != nil {
		return err
	}

	if _, err := r.List(ctx); err != nil {
		r.logger.Warn("unable to refresh session listing after revoke: %v", err)
	}
	return nil
}

// RevokeAll invalidates every session, including potentially the caller's
// own. The cached view is cleared; callers re-fetch once their own session
// state settles.
func (r *Registry) RevokeAll(ctx context.Context) error {
	if err := r.manager.Client().RevokeAllSessions(ctx); err != nil {
		return err
	}
	r.setView(nil)
	return nil
}

// View returns a copy of the last listing received from the server.
func (r *Registry) View() []RemoteSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view := make([]RemoteSession, len(r.view))
	copy(view, r.view)
	return view
}

func (r *Registry) currentSession() (RemoteSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.view {
		if s.IsCurrent {
			return s, true
		}
	}
	return RemoteSession{}, false
}

func (r *Registry) setView(sessions []RemoteSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = sessions
}
