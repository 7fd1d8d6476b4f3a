package authclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authclient "github.com/syntaxandsips/go-authclient"
)

func validSignup() authclient.SignupRequest {
	return authclient.SignupRequest{
		Email:           "grace@example.com",
		Password:        "battery staple",
		ConfirmPassword: "battery staple",
		Username:        "grace.hopper",
		FullName:        "Grace Hopper",
		DateOfBirth:     "1906-12-09",
	}
}

func TestSignupRequestValidate(t *testing.T) {
	require.NoError(t, validSignup().Validate())

	mutations := []struct {
		name   string
		mutate func(*authclient.SignupRequest)
	}{
		{"bad email", func(r *authclient.SignupRequest) { r.Email = "nope" }},
		{"short password", func(r *authclient.SignupRequest) { r.Password, r.ConfirmPassword = "short", "short" }},
		{"mismatched confirmation", func(r *authclient.SignupRequest) { r.ConfirmPassword = "battery stable" }},
		{"short username", func(r *authclient.SignupRequest) { r.Username = "ab" }},
		{"username with spaces", func(r *authclient.SignupRequest) { r.Username = "has spaces" }},
		{"username with symbols", func(r *authclient.SignupRequest) { r.Username = "grace!" }},
		{"short full name", func(r *authclient.SignupRequest) { r.FullName = "G" }},
		{"bad date", func(r *authclient.SignupRequest) { r.DateOfBirth = "12/09/1906" }},
		{"missing date", func(r *authclient.SignupRequest) { r.DateOfBirth = "" }},
	}

	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			payload := validSignup()
			tc.mutate(&payload)
			assert.Error(t, payload.Validate())
		})
	}
}

func TestUsernameAllowsDotsDashesUnderscores(t *testing.T) {
	for _, username := range []string{"grace.hopper", "grace-hopper", "grace_hopper", "grace1906"} {
		payload := validSignup()
		payload.Username = username
		assert.NoError(t, payload.Validate(), username)
	}
}

func TestVerifyOTPRequestValidate(t *testing.T) {
	valid := authclient.VerifyOTPRequest{
		Email:   "grace@example.com",
		Token:   "123456",
		Purpose: authclient.OTPPurposeLogin,
	}
	require.NoError(t, valid.Validate())

	short := valid
	short.Token = "123"
	assert.Error(t, short.Validate())

	unknown := valid
	unknown.Purpose = "sms"
	assert.Error(t, unknown.Validate(), "purpose is a closed set")

	verification := valid
	verification.Purpose = authclient.OTPPurposeEmailVerification
	assert.NoError(t, verification.Validate())
}

func TestValidateStringEquals(t *testing.T) {
	rule := authclient.ValidateStringEquals("expected")
	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("other"))
	assert.Error(t, rule(42), "non-string values never match")
}
