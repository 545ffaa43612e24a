package testutil

import (
	"github.com/google/uuid"
)

// RandomEmail returns an email address that is unique per call.
func RandomEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@example.com"
}

// RandomTitle returns an article title that is unique per call.
func RandomTitle(prefix string) string {
	return prefix + " " + uuid.NewString()[:8]
}
