package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateReferenceNo generates a short unique reference, e.g. "TEST-1A2B3C4D"
func GenerateReferenceNo(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:8])
}
