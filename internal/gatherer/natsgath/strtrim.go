package natsgath

// trimComment cuts a comment down to maxWidth runes so a single noisy
// record cannot blow up the message stream.
func trimComment(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}
	return string(runes[:maxWidth]) + "..."
}
