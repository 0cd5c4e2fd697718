package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// IsValidGSTIN reports whether s looks like a 15 character GSTIN.
// Lower case input is accepted.
func IsValidGSTIN(s string) bool {
	return gstinPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// RegisterGSTIN adds the "gstin" tag to v. Empty values pass so the tag can
// be combined with omitempty-style optional fields.
func RegisterGSTIN(v *validator.Validate) error {
	return v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.TrimSpace(s) == "" {
			return true
		}
		return IsValidGSTIN(s)
	})
}
