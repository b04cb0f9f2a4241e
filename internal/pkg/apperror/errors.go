package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeAlreadyVerified    ErrorCode = "ALREADY_VERIFIED"
	ErrCodeUnknownUser        ErrorCode = "UNKNOWN_USER"
	ErrCodeNoPendingOTP       ErrorCode = "NO_PENDING_OTP"
	ErrCodeCodeMismatch       ErrorCode = "CODE_MISMATCH"
	ErrCodeExpired            ErrorCode = "OTP_EXPIRED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUnverified         ErrorCode = "UNVERIFIED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError is an error that carries a client-facing message and status.
// Two AppErrors match under errors.Is when their codes are equal.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal wraps err as an opaque internal error unless it already is an AppError.
func Internal(err error, message string) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Wrap(err, ErrCodeInternal, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput,
		ErrCodeAlreadyVerified,
		ErrCodeUnknownUser,
		ErrCodeNoPendingOTP,
		ErrCodeCodeMismatch,
		ErrCodeExpired,
		ErrCodeInvalidCredentials,
		ErrCodeUnverified:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsInternal(err error) bool {
	return CodeOf(err) == ErrCodeInternal
}

var (
	ErrMissingFields      = New(ErrCodeInvalidInput, "All fields are required")
	ErrMissingOTPFields   = New(ErrCodeInvalidInput, "Email and OTP are required")
	ErrAlreadyVerified    = New(ErrCodeAlreadyVerified, "User already exists with this email")
	ErrUnknownUser        = New(ErrCodeUnknownUser, "User not found")
	ErrNoPendingOTP       = New(ErrCodeNoPendingOTP, "No OTP found. Request a new one.")
	ErrCodeMismatch       = New(ErrCodeCodeMismatch, "Invalid OTP")
	ErrOTPExpired         = New(ErrCodeExpired, "OTP expired.")
	ErrInvalidCredentials = New(ErrCodeInvalidCredentials, "Invalid email or role")
	ErrWrongPassword      = New(ErrCodeInvalidCredentials, "Invalid password")
	ErrUnverified         = New(ErrCodeUnverified, "Please verify your email before login.")
)
