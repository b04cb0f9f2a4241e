package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the enumerated account role.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole returns the role for s, reporting whether s names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// PendingOTP holds the live one-time code of an unverified account.
// Code hash and expiry always travel together.
type PendingOTP struct {
	CodeHash  string
	ExpiresAt time.Time
}

// Expired reports whether the code is past its expiry at now.
func (p PendingOTP) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// AccountState is either Unverified or Verified.
type AccountState interface {
	isAccountState()
}

// Unverified is the state of an account that has not confirmed its email yet.
// OTP is nil when no code is outstanding.
type Unverified struct {
	OTP *PendingOTP
}

// Verified is the terminal state; there is no way back to Unverified.
type Verified struct{}

func (Unverified) isAccountState() {}
func (Verified) isAccountState()   {}

// Account is a registered platform user keyed by email.
type Account struct {
	ID           uuid.UUID
	Role         Role
	Name         string
	Email        string
	PasswordHash string
	State        AccountState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsVerified reports whether the account confirmed its email.
func (a *Account) IsVerified() bool {
	_, ok := a.State.(Verified)
	return ok
}

// PendingOTP returns the outstanding code, if any.
func (a *Account) PendingOTP() (PendingOTP, bool) {
	st, ok := a.State.(Unverified)
	if !ok || st.OTP == nil {
		return PendingOTP{}, false
	}
	return *st.OTP, true
}

// Summary returns the non-secret part of the account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	cp := *a
	if st, ok := a.State.(Unverified); ok && st.OTP != nil {
		otp := *st.OTP
		cp.State = Unverified{OTP: &otp}
	}
	return &cp
}

// AccountSummary is what a successful login hands back to the client.
type AccountSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}
