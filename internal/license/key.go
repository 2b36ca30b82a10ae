// Package license implements the manual payment verification and
// license activation pipeline.
package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	// KeyPrefix is the fixed product prefix on every license key
	KeyPrefix = "SNAPPY"

	// MaskedKey is the placeholder serialized instead of the real key
	// while disclosure is not yet permitted
	MaskedKey = "••••••••••••••••"
)

// KeyPattern matches a well-formed license key: the product prefix,
// a dash, and 16 uppercase hex characters.
var KeyPattern = regexp.MustCompile(`^SNAPPY-[0-9A-F]{16}$`)

// GenerateKey mints a new license key from 8 bytes of crypto/rand
// entropy, rendered as uppercase hex.
func GenerateKey() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate license key: %w", err)
	}
	return KeyPrefix + "-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// ValidKeyFormat reports whether key is a well-formed license key.
func ValidKeyFormat(key string) bool {
	return KeyPattern.MatchString(key)
}

// CalculateExpiry returns the expiry instant for a license activated
// at the given time: one calendar year later. Feb 29 activations
// normalize to Mar 1 the following year.
func CalculateExpiry(activatedAt time.Time) time.Time {
	return activatedAt.AddDate(1, 0, 0)
}

// DaysRemaining returns the whole days left until expiry, rounding
// partial days up and never going below zero.
func DaysRemaining(expiresAt, now time.Time) int {
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}
