package utils

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is used when a number carries no country prefix.
const DefaultPhoneRegion = "IN"

// FormatPhone renders a customer phone for printing, e.g. "+91 98765 43210".
// Numbers that do not parse are returned trimmed but otherwise untouched.
func FormatPhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	p, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return raw
	}
	return libphonenumber.Format(p, libphonenumber.INTERNATIONAL)
}
