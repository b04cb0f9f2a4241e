package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

// CodeGenerator produces one-time codes.
type CodeGenerator func() (string, error)

// GenerateOTP returns a 6-digit decimal code drawn uniformly from [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
