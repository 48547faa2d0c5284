package policy

import "strings"

// MaskSecret shortens a credential to a prefix and tail so operators can
// correlate keys across log lines without the full value ever being written.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:8] + "..." + secret[len(secret)-4:]
}
