package authclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authclient "github.com/syntaxandsips/go-authclient"
)

// testLogger keeps test output quiet.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// signTestToken mints a throwaway HS256 token for holder tests and stub
// responses.
func signTestToken(t *testing.T, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("unable to sign test token: %v", err)
	}
	return token
}

// stubAPI fakes the auth backend contract over httptest. Every handler
// counts its hits so tests can assert which calls reached the wire.
type stubAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	calls         map[string]int
	validToken    string
	refreshCalls  int
	refreshFail   bool
	logoutFail    bool
	users         map[string]string
	user          authclient.User
	otpCode       string
	startAuth     map[string]authclient.StartAuthResult
	usernameTaken map[string]bool
	sessions      []authclient.RemoteSession
	lastSignup    authclient.SignupRequest
	signupStatus  int
}

func newStubAPI(t *testing.T) *stubAPI {
	t.Helper()

	s := &stubAPI{
		t:          t,
		calls:      map[string]int{},
		validToken: "token-1",
		users:      map[string]string{},
		otpCode:    "123456",
		startAuth:  map[string]authclient.StartAuthResult{},
		usernameTaken: map[string]bool{},
		user: authclient.User{
			ID:            uuid.NewString(),
			Email:         "ada@example.com",
			Username:      "ada",
			FullName:      "Ada Lovelace",
			EmailVerified: true,
		},
		signupStatus: http.StatusCreated,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/start", s.handleStart)
	mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/v1/auth/signin", s.handleSignin)
	mux.HandleFunc("POST /api/v1/auth/signin/otp", s.handleSigninOTP)
	mux.HandleFunc("POST /api/v1/auth/otp/verify", s.handleVerifyOTP)
	mux.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/v1/auth/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/v1/auth/sessions/{id}", s.handleRevokeSession)
	mux.HandleFunc("DELETE /api/v1/auth/sessions", s.handleRevokeAll)
	mux.HandleFunc("POST /api/v1/auth/password/change", s.handleAuthedOK)
	mux.HandleFunc("POST /api/v1/auth/email/change", s.handleAuthedOK)
	mux.HandleFunc("POST /api/v1/auth/password/forgot", s.handleAccepted)
	mux.HandleFunc("POST /api/v1/auth/password/reset", s.handleAccepted)
	mux.HandleFunc("POST /api/v1/auth/confirmation/resend", s.handleAccepted)
	mux.HandleFunc("GET /api/v1/auth/username/available", s.handleUsername)

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.count(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.srv.Close)

	return s
}

func (s *stubAPI) URL() string { return s.srv.URL }

func (s *stubAPI) count(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[r.Method+" "+r.URL.Path]++
}

// callCount returns how many requests hit method+path.
func (s *stubAPI) callCount(methodAndPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[methodAndPath]
}

func (s *stubAPI) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *stubAPI) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validToken
}

func (s *stubAPI) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *stubAPI) lastSignupPayload() authclient.SignupRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignup
}

func (s *stubAPI) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+s.validToken
}

func (s *stubAPI) authResponse() authclient.AuthResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.user
	return authclient.AuthResponse{
		User:        &user,
		AccessToken: s.validToken,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *stubAPI) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	result, ok := s.startAuth[payload.Email]
	s.mu.Unlock()
	if !ok {
		result = authclient.StartAuthResult{Exists: false, Next: authclient.NextCreateAccount}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *stubAPI) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload authclient.SignupRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	s.lastSignup = payload
	status := s.signupStatus
	s.mu.Unlock()

	if status != http.StatusCreated {
		writeDetail(w, status, "Email already registered")
		return
	}
	writeJSON(w, http.StatusCreated, authclient.SignupResult{
		UserID:  uuid.NewString(),
		Message: "User created successfully. Please check your email for confirmation.",
		Next:    "confirm_email",
	})
}

func (s *stubAPI) handleSignin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	password, ok := s.users[payload.Email]
	s.mu.Unlock()
	if !ok || password != payload.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, s.authResponse())
}

func (s *stubAPI) handleSigninOTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Magic link or OTP sent to email"})
}

func (s *stubAPI) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Token string `json:"token"`
		Type  string `json:"type"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	s.mu.Lock()
	code := s.otpCode
	s.mu.Unlock()
	if payload.Token != code {
		writeDetail(w, http.StatusUnauthorized, "Invalid or expired OTP")
		return
	}
	writeJSON(w, http.StatusOK, s.authResponse())
}

func (s *stubAPI) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	fail := s.refreshFail
	if !fail {
		s.validToken = "token-" + uuid.NewString()[:8]
	}
	s.mu.Unlock()

	if fail {
		writeDetail(w, http.StatusUnauthorized, "Refresh token expired")
		return
	}
	writeJSON(w, http.StatusOK, s.authResponse())
}

func (s *stubAPI) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fail := s.logoutFail
	s.mu.Unlock()
	if fail {
		writeDetail(w, http.StatusInternalServerError, "sign out failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *stubAPI) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	s.mu.Lock()
	sessions := make([]authclient.RemoteSession, len(s.sessions))
	copy(sessions, s.sessions)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *stubAPI) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	kept := s.sessions[:0]
	found := false
	for _, session := range s.sessions {
		if session.ID == id {
			found = true
			continue
		}
		kept = append(kept, session)
	}
	s.sessions = kept
	s.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session terminated"})
}

func (s *stubAPI) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	s.mu.Lock()
	s.sessions = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "All sessions terminated"})
}

func (s *stubAPI) handleAuthedOK(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *stubAPI) handleAccepted(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *stubAPI) handleUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("u")
	s.mu.Lock()
	taken := s.usernameTaken[strings.ToLower(username)]
	s.mu.Unlock()
	if taken {
		writeDetail(w, http.StatusConflict, "Username already taken")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": true})
}
