package kb

import "strings"

// Snippet returns a short excerpt of text around the first occurrence of
// term, trimmed to word boundaries. When the term does not occur, the
// prefix of the text is returned instead.
func Snippet(text, term string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 200
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	idx := -1
	if term != "" {
		idx = strings.Index(strings.ToLower(text), strings.ToLower(term))
	}
	if idx < 0 {
		return string(runes[:maxLen]) + "..."
	}

	// Byte offset back to rune offset.
	runeIdx := len([]rune(text[:idx]))
	start := runeIdx - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	// Widen to the nearest whitespace so the excerpt does not cut words.
	for start > 0 && runes[start] != ' ' && runes[start] != '\n' {
		start--
	}
	for end < len(runes) && runes[end-1] != ' ' && runes[end-1] != '\n' {
		end++
	}

	snippet := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}
