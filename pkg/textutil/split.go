// Package textutil holds pure text transforms for composing bot replies:
// platform-safe message splitting and section extraction from generated
// text. No I/O.
package textutil

import "regexp"

var boldMarkers = regexp.MustCompile(`\*{1,3}(.*?)\*{1,3}`)

// StripBold removes markdown asterisk emphasis, keeping the wrapped text.
func StripBold(text string) string {
	return boldMarkers.ReplaceAllString(text, "$1")
}

// SplitMessage breaks text into chunks of at most maxLength runes,
// preferring to cut at the last newline, then the last space, before the
// limit. Words are split only when a window contains no breakpoint.
// Concatenating the chunks reproduces the input exactly.
func SplitMessage(text string, maxLength int) []string {
	if maxLength <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= maxLength {
			parts = append(parts, string(runes))
			break
		}
		window := runes[:maxLength]
		cut := lastIndexRune(window, '\n')
		if cut == -1 {
			cut = lastIndexRune(window, ' ')
		}
		if cut == -1 {
			cut = maxLength - 1
		}
		parts = append(parts, string(runes[:cut+1]))
		runes = runes[cut+1:]
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
