// Package textx provides small text utilities used across the project.
package textx

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	// disallowed matches every rune that is not a word character,
	// whitespace, or a period. Periods are kept as a weak sentence
	// boundary signal for the embedding model.
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.]+`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Normalize lowercases the input, removes punctuation and symbols except
// periods, collapses any whitespace run to a single space and trims the
// result. It is idempotent: Normalize(Normalize(s)) == Normalize(s).
// Whitespace-only input normalizes to the empty string, which callers
// treat as "no usable content".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// ContentHash returns the hex SHA-256 of the normalized form of s. Two
// texts that differ only in casing, whitespace or punctuation hash to the
// same key, so embedding cache hits survive incidental formatting changes.
func ContentHash(s string) string {
	h := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(h[:])
}

// WordCount reports the number of whitespace-separated tokens in s.
// Used for the similarity analysis payload.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
