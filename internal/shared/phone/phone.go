// Package phone normalizes Kenyan mobile numbers to the international
// 2547XXXXXXXX / 2541XXXXXXXX format the payment gateway requires.
package phone

import (
	"regexp"
	"strings"

	"github.com/pesaflow/pesaflow/internal/shared/errors"
)

var msisdnPattern = regexp.MustCompile(`^254(7|1)\d{8}$`)

// Normalize converts the accepted local input forms (07XX..., 01XX...,
// +2547..., 2547..., 7XX...) into the canonical 12-digit MSISDN. Returns a
// ValidationError for anything that cannot be normalized.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, "254"):
		// already international
	case strings.HasPrefix(s, "07"), strings.HasPrefix(s, "01"):
		s = "254" + s[1:]
	case strings.HasPrefix(s, "7"), strings.HasPrefix(s, "1"):
		s = "254" + s
	}

	if !msisdnPattern.MatchString(s) {
		return "", errors.NewValidationError("invalid phone number", raw)
	}

	return s, nil
}

// IsValid reports whether raw normalizes to a valid MSISDN.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
