package dto

import "github.com/abhishek00112233/LMS-Backend/internal/models"

// MessageResponse is the body of every non-login reply, success or failure.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Message string                `json:"message"`
	User    models.AccountSummary `json:"user"`
}
