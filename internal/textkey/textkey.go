package textkey

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize lowercases text, normalizes line endings and collapses runs of
// whitespace to a single space.
func Normalize(text string) string {
	t := strings.ToLower(text)
	t = strings.ReplaceAll(t, "\r\n", "\n")
	return strings.Join(strings.Fields(t), " ")
}

// Hash normalizes each part and returns the SHA-256 of the parts joined by
// newlines as a hex string.
func Hash(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = Normalize(p)
	}
	// Joining with a newline keeps "ab"+"c" distinct from "a"+"bc".
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return fmt.Sprintf("%x", sum)
}
