// Package credentials validates the login input supplied by the front end.
package credentials

import (
	"fmt"
	"regexp"
	"strings"

	"inbox-autoresponder/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

const maxPhoneDigits = 10

// IsValidEmail reports whether addr looks like an email address
func IsValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// New validates the login fields and returns session credentials with the phone formatted
func New(address, secret, phone string) (models.Credentials, error) {
	address = strings.TrimSpace(address)
	secret = strings.TrimSpace(secret)

	if address == "" || secret == "" {
		return models.Credentials{}, fmt.Errorf("%w: address and secret are required", models.ErrInvalidCredentials)
	}
	if !IsValidEmail(address) {
		return models.Credentials{}, fmt.Errorf("%w: %q is not a valid email address", models.ErrInvalidCredentials, address)
	}

	return models.Credentials{
		Address: address,
		Secret:  secret,
		Phone:   FormatPhone(NormalizePhone(phone)),
	}, nil
}

// NormalizePhone strips every non-digit and keeps at most ten digits
func NormalizePhone(text string) string {
	digits := nonDigit.ReplaceAllString(text, "")
	if len(digits) > maxPhoneDigits {
		digits = digits[:maxPhoneDigits]
	}
	return digits
}

// FormatPhone renders digits as ddd-ddd-dddd, or a shorter prefix of that form
func FormatPhone(digits string) string {
	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return digits[:3] + "-" + digits[3:]
	default:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	}
}
