package authclient

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenHolder is the in-memory home of the current access token. The token
// never touches durable storage; it is replaced wholesale on every
// successful login, OTP verification, or refresh.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder returns an empty holder.
func NewTokenHolder() *TokenHolder {
	return &TokenHolder{}
}

// Token returns the held access token and whether one is present.
func (h *TokenHolder) Token() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

// Set replaces the held access token.
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Clear drops the held access token.
func (h *TokenHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
}

// ExpiresAt reads the exp claim from the held token without verifying the
// signature; the token is an opaque credential to this client and only the
// server vouches for it.
func (h *TokenHolder) ExpiresAt() (time.Time, bool) {
	claims, ok := h.parseClaims()
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiresWithin reports whether the held token expires inside d. A missing
// or unparseable token counts as expired so callers refresh eagerly.
func (h *TokenHolder) ExpiresWithin(d time.Duration) bool {
	exp, ok := h.ExpiresAt()
	if !ok {
		return true
	}
	return time.Until(exp) <= d
}

// Subject reads the sub claim from the held token.
func (h *TokenHolder) Subject() (string, bool) {
	claims, ok := h.parseClaims()
	if !ok {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func (h *TokenHolder) parseClaims() (jwt.MapClaims, bool) {
	token, ok := h.Token()
	if !ok {
		return nil, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
