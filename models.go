package authclient

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// NextStep is the branch the account probe reports for an email address.
type NextStep string

const (
	// NextPassword means an account with a password exists; sign in with it.
	NextPassword NextStep = "password"
	// NextSocialLogin means the account only has social-provider identities.
	NextSocialLogin NextStep = "social_login"
	// NextCreateAccount means no account exists for the email.
	NextCreateAccount NextStep = "create_account"
)

// OTPPurpose distinguishes the flows a one-time code can complete.
type OTPPurpose string

const (
	OTPPurposeLogin             OTPPurpose = "login"
	OTPPurposeEmailVerification OTPPurpose = "email_verification"
)

// User is the identity record owned by the SessionManager. It is replaced
// wholesale on login, refresh, and verification, and cleared on logout.
type User struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Username      string   `json:"username"`
	FullName      string   `json:"full_name,omitempty"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	EmailVerified bool     `json:"email_verified"`
}

// UUID parses the server-issued identifier.
func (u *User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// AuthResponse is the token-minting envelope returned by signin, OTP
// verification, and refresh.
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// StartAuthResult reports whether an account exists for an email and which
// path applies next.
type StartAuthResult struct {
	Exists bool     `json:"exists"`
	Next   NextStep `json:"next"`
}

// SignupResult is the acknowledgement for a created account; the email
// verification code is delivered out-of-band.
type SignupResult struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Next    string `json:"next"`
}

// RemoteSession is a read-only snapshot of one authenticated device tracked
// by the server.
type RemoteSession struct {
	ID         string     `json:"id"`
	Device     string     `json:"device"`
	IPAddress  string     `json:"ip_address,omitempty"`
	LastActive *time.Time `json:"last_active,omitempty"`
	IsCurrent  bool       `json:"is_current"`
}

type sessionsEnvelope struct {
	Sessions []RemoteSession `json:"sessions"`
	Total    int             `json:"total"`
}

type usernameAvailability struct {
	Available bool `json:"available"`
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// StartAuthRequest probes the account state for an email address.
type StartAuthRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r StartAuthRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// SigninRequest exchanges password credentials for a token pair.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r SigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SigninOTPRequest asks the server to deliver a one-time code out-of-band.
type SigninOTPRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// Validate will run validation rules
func (r SigninOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// VerifyOTPRequest exchanges a one-time code for a token pair.
type VerifyOTPRequest struct {
	Email   string     `json:"email"`
	Token   string     `json:"token"`
	Purpose OTPPurpose `json:"type"`
}

// Validate will run validation rules
func (r VerifyOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required, validation.Length(6, 6)),
		validation.Field(&r.Purpose, validation.Required, validation.In(
			OTPPurposeLogin,
			OTPPurposeEmailVerification,
		)),
	)
}

// SignupRequest is the accumulated account-creation payload. Field names
// follow the backend's camelCase contract.
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Username        string `json:"username"`
	FullName        string `json:"fullName"`
	DateOfBirth     string `json:"dob"`
	NewsletterOptIn bool   `json:"newsletterOptIn"`
	ReferralCode    string `json:"referralCode,omitempty"`
	RedirectTo      string `json:"redirectTo,omitempty"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(3, 30),
			validation.Match(usernamePattern),
		),
		validation.Field(&r.FullName, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.DateOfBirth, validation.Required, validation.Date("2006-01-02")),
	)
}

// ForgotPasswordRequest starts the password-reset flow for an email.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest completes a password reset with an emailed token.
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

// ResendConfirmationRequest re-sends the signup confirmation email.
type ResendConfirmationRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ResendConfirmationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ChangePasswordRequest is an authenticated password mutation.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

// ChangeEmailRequest is an authenticated email mutation; the password is
// required so the server can re-verify the caller.
type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ChangeEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
