package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abhishek00112233/LMS-Backend/internal/dto"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// API is a thin JSON client for the auth endpoints.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates a client for the server at baseURL.
func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SendOTP registers the user and returns the server message.
func (a *API) SendOTP(ctx context.Context, req dto.SendOTPRequest) (string, error) {
	var resp dto.MessageResponse
	if err := a.post(ctx, "/api/send-otp", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// VerifyOTP submits the emailed code.
func (a *API) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	var resp dto.MessageResponse
	req := dto.VerifyOTPRequest{Email: email, OTP: dto.OTPValue(otp)}
	if err := a.post(ctx, "/api/verify-otp", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login authenticates and returns the account summary.
func (a *API) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := a.post(ctx, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg dto.MessageResponse
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
