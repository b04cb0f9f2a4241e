package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
)

const (
	MaxNameLength  = 100
	MaxEmailLength = 254
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._%+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength checks the rune length of a string.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so it can be used as an identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the format of an already normalized email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email must be at most %d characters", MaxEmailLength)
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}

	localPart, domainPart := parts[0], parts[1]
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("invalid email format")
	}
	if !emailLocalRegex.MatchString(localPart) || !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidateName checks a trimmed display name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	return ValidateLength("name", name, 1, MaxNameLength)
}

// ValidateRole parses role or reports the allowed values.
func ValidateRole(role string) (models.Role, error) {
	r, ok := models.ParseRole(role)
	if !ok {
		return "", fmt.Errorf("role must be one of student, instructor, admin")
	}
	return r, nil
}
