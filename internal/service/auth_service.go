package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhishek00112233/LMS-Backend/internal/logger"
	"github.com/abhishek00112233/LMS-Backend/internal/mail"
	"github.com/abhishek00112233/LMS-Backend/internal/models"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/apperror"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/clock"
	"github.com/abhishek00112233/LMS-Backend/internal/repository"
	"github.com/abhishek00112233/LMS-Backend/internal/validation"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 5 * time.Minute

// AccountRepository is the credential store used by AuthService.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error)
	SavePending(ctx context.Context, acc *models.Account, msg *models.OutboxMessage) error
	MarkVerified(ctx context.Context, id uuid.UUID, codeHash string) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hashed, plaintext string) bool
}

// CodeHasher hashes one-time codes for storage.
type CodeHasher interface {
	Hash(value string) string
	Equal(hashed, value string) bool
}

// OTPRenderer builds the email carrying a code.
type OTPRenderer interface {
	Render(recipient, code string) (mail.Message, error)
}

// AuthService implements registration with an emailed one-time code,
// code verification and login.
type AuthService struct {
	repo      AccountRepository
	passwords PasswordHasher
	codes     CodeHasher
	renderer  OTPRenderer
	clock     clock.Clocker
	generate  CodeGenerator
	otpTTL    time.Duration
}

// AuthOption customizes AuthService.
type AuthOption func(*AuthService)

// WithClock replaces the system clock.
func WithClock(c clock.Clocker) AuthOption {
	return func(s *AuthService) { s.clock = c }
}

// WithCodeGenerator replaces GenerateOTP.
func WithCodeGenerator(g CodeGenerator) AuthOption {
	return func(s *AuthService) { s.generate = g }
}

// WithOTPTTL sets the code lifetime. Non-positive values are ignored.
func WithOTPTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// NewAuthService creates the service.
func NewAuthService(repo AccountRepository, passwords PasswordHasher, codes CodeHasher, renderer OTPRenderer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		repo:      repo,
		passwords: passwords,
		codes:     codes,
		renderer:  renderer,
		clock:     clock.New(),
		generate:  GenerateOTP,
		otpTTL:    DefaultOTPTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendOTPInput carries the registration form.
type SendOTPInput struct {
	Role     string
	Name     string
	Email    string
	Password string
}

// VerifyOTPInput carries the code submission.
type VerifyOTPInput struct {
	Email string
	OTP   string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Role     string
	Email    string
	Password string
}

// SendOTP registers or re-registers an unverified account and queues a fresh
// code for delivery. The call succeeds once the account and the queued
// message are persisted; delivery happens later.
func (s *AuthService) SendOTP(ctx context.Context, in SendOTPInput) error {
	name := strings.TrimSpace(in.Name)
	email := validation.NormalizeEmail(in.Email)
	if in.Role == "" || name == "" || email == "" || in.Password == "" {
		return apperror.ErrMissingFields
	}

	role, err := validation.ValidateRole(in.Role)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}
	for _, check := range []func() error{
		func() error { return validation.ValidateName(name) },
		func() error { return validation.ValidateEmail(email) },
		func() error { return validation.ValidatePassword(in.Password) },
	} {
		if err := check(); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
		}
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		existing = nil
	case err != nil:
		return fmt.Errorf("auth service: lookup account: %w", err)
	case existing.IsVerified():
		return apperror.ErrAlreadyVerified
	}

	passwordHash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	now := s.clock.Now()
	acc := &models.Account{
		ID:           uuid.New(),
		Role:         role,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		State: models.Unverified{OTP: &models.PendingOTP{
			CodeHash:  s.codes.Hash(code),
			ExpiresAt: now.Add(s.otpTTL),
		}},
	}

	rendered, err := s.renderer.Render(email, code)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	msg := &models.OutboxMessage{
		ID:            uuid.New(),
		Recipient:     rendered.To,
		Subject:       rendered.Subject,
		HTMLBody:      rendered.HTMLBody,
		TextBody:      rendered.TextBody,
		NextAttemptAt: now,
	}

	if err := s.repo.SavePending(ctx, acc, msg); err != nil {
		if errors.Is(err, repository.ErrAccountVerified) {
			return apperror.ErrAlreadyVerified
		}
		return fmt.Errorf("auth service: save pending account: %w", err)
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"account_id": acc.ID,
		"email":      email,
		"role":       role,
	})
	if existing != nil && (existing.Name != name || existing.Role != role) {
		entry.WithFields(logrus.Fields{
			"previous_name": existing.Name,
			"previous_role": existing.Role,
		}).Warn("auth service: unverified registration overwritten")
	}
	entry.Info("auth service: otp issued")

	return nil
}

// VerifyOTP checks code against the pending code of the account and, on a
// match within the validity window, marks the account verified. Checks run
// in order: account exists, code pending, code matches, code not expired.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) error {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.OTP == "" {
		return apperror.ErrMissingOTPFields
	}

	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperror.ErrUnknownUser
		}
		return fmt.Errorf("auth service: lookup account: %w", err)
	}

	otp, ok := acc.PendingOTP()
	if !ok {
		return apperror.ErrNoPendingOTP
	}
	if !s.codes.Equal(otp.CodeHash, in.OTP) {
		return apperror.ErrCodeMismatch
	}
	if otp.Expired(s.clock.Now()) {
		return apperror.ErrOTPExpired
	}

	if err := s.repo.MarkVerified(ctx, acc.ID, otp.CodeHash); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return apperror.ErrNoPendingOTP
		}
		return fmt.Errorf("auth service: mark verified: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id": acc.ID,
		"email":      email,
	}).Info("auth service: account verified")

	return nil
}

// Login returns the account summary for a verified account matching role,
// email and password. Role is part of the lookup, so a wrong role reads the
// same as an unknown email.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AccountSummary, error) {
	email := validation.NormalizeEmail(in.Email)
	if in.Role == "" || email == "" || in.Password == "" {
		return nil, apperror.ErrMissingFields
	}

	acc, err := s.repo.GetByEmailAndRole(ctx, email, models.Role(in.Role))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: lookup account: %w", err)
	}

	if !acc.IsVerified() {
		return nil, apperror.ErrUnverified
	}
	if !s.passwords.Verify(acc.PasswordHash, in.Password) {
		return nil, apperror.ErrWrongPassword
	}

	logger.Log.WithFields(logrus.Fields{
		"account_id": acc.ID,
		"role":       acc.Role,
	}).Info("auth service: login")

	summary := acc.Summary()
	return &summary, nil
}
