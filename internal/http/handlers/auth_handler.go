package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhishek00112233/LMS-Backend/internal/dto"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/apperror"
	"github.com/abhishek00112233/LMS-Backend/internal/service"
)

const (
	msgOTPSent      = "OTP sent successfully to your email."
	msgVerified     = "Account verified successfully!"
	msgLoginSuccess = "Login successful"

	msgSendOTPFailed = "Server error in sending OTP"
	msgVerifyFailed  = "Server error in OTP verification"
	msgLoginFailed   = "Server error in login"

	msgInvalidBody = "Invalid request body"
)

// AuthHandler serves registration, verification and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SendOTP handles POST /api/send-otp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.auth.SendOTP(c.Request.Context(), service.SendOTPInput{
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(apperror.Internal(err, msgSendOTPFailed))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgOTPSent})
}

// VerifyOTP handles POST /api/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.auth.VerifyOTP(c.Request.Context(), service.VerifyOTPInput{
		Email: req.Email,
		OTP:   string(req.OTP),
	})
	if err != nil {
		_ = c.Error(apperror.Internal(err, msgVerifyFailed))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgVerified})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Role:     req.Role,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(apperror.Internal(err, msgLoginFailed))
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Message: msgLoginSuccess,
		User:    *summary,
	})
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so the
// service reports the missing fields; a malformed body is an input error.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperror.Wrap(err, apperror.ErrCodeInvalidInput, msgInvalidBody))
		return false
	}
	return true
}
