package token

import (
	"regexp"
	"strings"
)

const (
	// MinTokenLength filters out short ids and enum values that happen to
	// share the token charset.
	MinTokenLength = 20
	// MaxTokenLength filters out inlined blobs (sprite data, fingerprints).
	MaxTokenLength = 512
)

var charsetRe = regexp.MustCompile(`^[A-Za-z0-9_-]+={0,2}$`)

// codeLikeMarkers reject candidates that are fragments of executable code.
// Some panel pages embed script-computed pseudo-tokens next to the real one;
// anything with call syntax, declarations, or concatenation is a decoy.
var codeLikeMarkers = []string{
	"(", ")", "+", ";", "'", "\"", "`",
	"function", "return ", "var ", "let ", "const ", "=>",
}

// Valid reports whether a candidate is a plausible anti-forgery token:
// URL-safe base64 charset only (padding allowed at the end), bounded
// length, and nothing resembling executable code.
func Valid(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if len(trimmed) < MinTokenLength || len(trimmed) > MaxTokenLength {
		return false
	}

	for _, marker := range codeLikeMarkers {
		if strings.Contains(trimmed, marker) {
			return false
		}
	}

	return charsetRe.MatchString(trimmed)
}
