package utils

// Truncate shortens a string to maxLen runes, appending an ellipsis when
// anything was cut. Rune-based so multibyte text is never split mid-character.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
