package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SendOTPRequest is the body of POST /api/send-otp.
type SendOTPRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyOTPRequest is the body of POST /api/verify-otp.
type VerifyOTPRequest struct {
	Email string   `json:"email"`
	OTP   OTPValue `json:"otp"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPValue accepts the code as a JSON string or a JSON number.
// Numbers keep their literal text so no normalization happens.
type OTPValue string

func (v *OTPValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = OTPValue(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("otp must be a string or a number")
		}
		*v = OTPValue(n.String())
		return nil
	}
}
