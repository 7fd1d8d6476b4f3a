package authclient

import (
	"context"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// WizardStep identifies one of the four signup steps.
type WizardStep int

const (
	StepBasics WizardStep = iota + 1
	StepProfile
	StepPreferences
	StepVerification
)

func (s WizardStep) String() string {
	switch s {
	case StepBasics:
		return "basics"
	case StepProfile:
		return "profile"
	case StepPreferences:
		return "preferences"
	case StepVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// ErrAccountExists blocks step one when the probe reports an existing
// account; its metadata carries which auth path applies.
var ErrAccountExists = goerrors.New("an account already exists for this email", goerrors.CategoryConflict).
	WithTextCode(textCodeAccountExists).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken blocks step two until a different username is tried. It
// is retryable: the entered profile fields are kept.
var ErrUsernameTaken = goerrors.New("username is not available", goerrors.CategoryConflict).
	WithTextCode(textCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrWrongStep is returned when a payload is submitted for a step other
// than the wizard's current one.
var ErrWrongStep = goerrors.New("submission does not match the current step", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// BasicsPayload is step one: account credentials.
type BasicsPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will run validation rules
func (p BasicsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// ProfilePayload is step two: public identity.
type ProfilePayload struct {
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dob"`
}

// Validate will run validation rules
func (p ProfilePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Username,
			validation.Required,
			validation.Length(3, 30),
			validation.Match(usernamePattern),
		),
		validation.Field(&p.FullName, validation.Required, validation.Length(2, 200)),
		validation.Field(&p.DateOfBirth, validation.Required, validation.Date("2006-01-02")),
	)
}

// PreferencesPayload is step three: everything optional.
type PreferencesPayload struct {
	NewsletterOptIn bool   `json:"newsletterOptIn"`
	ReferralCode    string `json:"referralCode"`
}

// Validate will run validation rules
func (p PreferencesPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ReferralCode, validation.Length(0, 64)),
	)
}

// VerificationPayload is step four: the emailed one-time code.
type VerificationPayload struct {
	Code string `json:"code"`
}

// Validate will run validation rules
func (p VerificationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Code, validation.Required, validation.Length(6, 6)),
	)
}

// SignupForm is the accumulated field state across steps. A later step's
// submission includes every prior step's validated fields.
type SignupForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	Username        string
	FullName        string
	DateOfBirth     string
	NewsletterOptIn bool
	ReferralCode    string
}

// Wizard drives the guarded four-step signup sequence. Each step runs its
// local schema before any server round-trip, and the step index only moves
// forward by one per successful submission. Steps validate strictly
// sequentially; the wizard is safe to share but never validates two steps
// at once.
type Wizard struct {
	manager *SessionManager
	logger  Logger

	mu        sync.Mutex
	step      WizardStep
	form      SignupForm
	completed bool
}

// WizardOption configures a Wizard.
type WizardOption func(*Wizard)

// WithWizardLogger overrides the wizard logger.
func WithWizardLogger(logger Logger) WizardOption {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWizard starts a signup flow at step one.
func NewWizard(manager *SessionManager, opts ...WizardOption) *Wizard {
	w := &Wizard{
		manager: manager,
		logger:  defLogger{},
		step:    StepBasics,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Step reports the current step.
func (w *Wizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Completed reports whether the wizard has finished.
func (w *Wizard) Completed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed
}

// Form returns a copy of the accumulated field state.
func (w *Wizard) Form() SignupForm {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Back moves to the previous step. It is always permitted, re-validates
// nothing, and never calls the server.
func (w *Wizard) Back() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepBasics {
		w.step--
	}
	return w.step
}

// Reset discards the accumulated form and returns to step one, for callers
// abandoning the flow.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepBasics
	w.form = SignupForm{}
	w.completed = false
}

// SubmitBasics validates step one locally, probes the account state, and
// advances only when the email has no existing account. An existing account
// blocks advancement; the error metadata names the applicable path
// (password or social_login).
func (w *Wizard) SubmitBasics(ctx context.Context, payload BasicsPayload) error {
	if err := w.require(StepBasics); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	probe, err := w.manager.StartAuth(ctx, payload.Email)
	if err != nil {
		return err
	}

	if probe.Exists || probe.Next != NextCreateAccount {
		return accountExists(probe.Next)
	}

	w.mu.Lock()
	w.form.Email = payload.Email
	w.form.Password = payload.Password
	w.form.ConfirmPassword = payload.ConfirmPassword
	w.mu.Unlock()

	return w.advance(StepBasics)
}

// SubmitProfile validates step two locally, then checks username
// availability. An unavailable username blocks advancement but keeps the
// entered fields so the caller only retypes the username.
func (w *Wizard) SubmitProfile(ctx context.Context, payload ProfilePayload) error {
	if err := w.require(StepProfile); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	w.mu.Lock()
	w.form.Username = payload.Username
	w.form.FullName = payload.FullName
	w.form.DateOfBirth = payload.DateOfBirth
	w.mu.Unlock()

	available, err := w.manager.Client().CheckUsername(ctx, payload.Username)
	if err != nil {
		return err
	}
	if !available {
		return ErrUsernameTaken
	}

	return w.advance(StepProfile)
}

// SubmitPreferences validates step three (always passes on schema: both
// fields are optional) and submits the accumulated signup payload — the
// account-creation call that triggers the verification email.
func (w *Wizard) SubmitPreferences(ctx context.Context, payload PreferencesPayload) error {
	if err := w.require(StepPreferences); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	w.mu.Lock()
	w.form.NewsletterOptIn = payload.NewsletterOptIn
	w.form.ReferralCode = payload.ReferralCode
	signup := SignupRequest{
		Email:           w.form.Email,
		Password:        w.form.Password,
		ConfirmPassword: w.form.ConfirmPassword,
		Username:        w.form.Username,
		FullName:        w.form.FullName,
		DateOfBirth:     w.form.DateOfBirth,
		NewsletterOptIn: w.form.NewsletterOptIn,
		ReferralCode:    w.form.ReferralCode,
	}
	w.mu.Unlock()

	result, err := w.manager.Signup(ctx, signup)
	if err != nil {
		return err
	}
	w.logger.Debug("account created: %s next=%s", result.UserID, result.Next)

	return w.advance(StepPreferences)
}

// SubmitVerification validates the six-digit code and exchanges it for a
// token pair. Success authenticates the session manager and completes the
// wizard.
func (w *Wizard) SubmitVerification(ctx context.Context, payload VerificationPayload) error {
	if err := w.require(StepVerification); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	w.mu.Lock()
	email := w.form.Email
	w.mu.Unlock()

	if _, err := w.manager.VerifyOTP(ctx, email, payload.Code, OTPPurposeEmailVerification); err != nil {
		return err
	}

	w.mu.Lock()
	w.completed = true
	w.form = SignupForm{}
	w.mu.Unlock()

	return nil
}

func (w *Wizard) require(step WizardStep) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.completed {
		return wrongStep(map[string]any{"current": "completed"})
	}
	if w.step != step {
		return wrongStep(map[string]any{
			"current":   w.step.String(),
			"submitted": step.String(),
		})
	}
	return nil
}

// advance moves exactly one step forward from the step the submission
// validated against; a concurrent move surfaces as ErrWrongStep instead of
// a skipped step.
func (w *Wizard) advance(from WizardStep) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != from {
		return wrongStep(map[string]any{"current": w.step.String()})
	}
	w.step = from + 1
	return nil
}

// accountExists clones the sentinel so each caller gets its own metadata;
// the sentinel itself stays in the chain for errors.Is.
func accountExists(next NextStep) error {
	clone := ErrAccountExists.Clone()
	if clone == nil {
		return ErrAccountExists
	}
	clone.Source = ErrAccountExists
	return clone.WithMetadata(map[string]any{
		"next": string(next),
	})
}

func wrongStep(meta map[string]any) error {
	clone := ErrWrongStep.Clone()
	if clone == nil {
		return ErrWrongStep
	}
	clone.Source = ErrWrongStep
	return clone.WithMetadata(meta)
}
