package utils

// Preview returns the leading maxRunes characters of s, with "..." appended
// when s was truncated. Rune-aware so multi-byte text is never cut mid-character.
// If maxRunes is 0 or negative, returns s unchanged.
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
