package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var numberedHeading = regexp.MustCompile(`(?m)^[ \t]*(\d+)[.)][ \t]+\S`)

// ParseNumbered locates sections headed "N. Title" (or "N) Title") and
// returns a slice of n section texts plus the zero-based indices still
// missing. Section i holds the text from heading i+1 up to the next
// heading; headings outside 1..n are ignored.
func ParseNumbered(text string, n int) ([]string, []int) {
	sections := make([]string, n)
	matches := numberedHeading.FindAllStringSubmatchIndex(text, -1)
	type span struct {
		number int
		start  int
	}
	var spans []span
	for _, m := range matches {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || number < 1 || number > n {
			continue
		}
		spans = append(spans, span{number: number, start: m[0]})
	}
	for i, sp := range spans {
		end := len(text)
		if i+1 < len(spans) {
			end = spans[i+1].start
		}
		content := strings.TrimSpace(text[sp.start:end])
		if content != "" && sections[sp.number-1] == "" {
			sections[sp.number-1] = content
		}
	}
	return sections, missingIndices(sections)
}

// SplitByBlocks splits text into non-empty blocks separated by blank lines.
func SplitByBlocks(text string) []string {
	raw := regexp.MustCompile(`\n[ \t]*\n`).Split(text, -1)
	blocks := make([]string, 0, len(raw))
	for _, block := range raw {
		block = strings.TrimSpace(block)
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// EqualSplit partitions text into n near-equal rune windows, trimming
// surrounding whitespace per part. Parts are never empty unless the text
// runs out.
func EqualSplit(text string, n int) []string {
	parts := make([]string, n)
	runes := []rune(strings.TrimSpace(text))
	if n <= 0 || len(runes) == 0 {
		return parts
	}
	size := (len(runes) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * size
		if start >= len(runes) {
			break
		}
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts[i] = strings.TrimSpace(string(runes[start:end]))
	}
	return parts
}

// Regenerator produces the text for one missing section (zero-based index).
type Regenerator func(index int) (string, error)

// FillSections extracts n sections from generated text with a bounded
// escalation: direct numbered-heading parse, then blank-line block split,
// then per-section regeneration, then an equal-length split of the raw
// text. Each tier runs only while sections are still missing.
func FillSections(text string, n int, regen Regenerator) []string {
	sections, missing := ParseNumbered(text, n)
	if len(missing) == 0 {
		return sections
	}

	blocks := SplitByBlocks(text)
	if len(blocks) >= n {
		for _, idx := range missing {
			sections[idx] = blocks[idx]
		}
		missing = missingIndices(sections)
		if len(missing) == 0 {
			return sections
		}
	}

	if regen != nil {
		for _, idx := range missing {
			part, err := regen(idx)
			if err != nil || strings.TrimSpace(part) == "" {
				continue
			}
			sections[idx] = strings.TrimSpace(part)
		}
		missing = missingIndices(sections)
		if len(missing) == 0 {
			return sections
		}
	}

	equal := EqualSplit(text, n)
	for _, idx := range missing {
		sections[idx] = equal[idx]
	}
	return sections
}

func missingIndices(sections []string) []int {
	var missing []int
	for i, s := range sections {
		if strings.TrimSpace(s) == "" {
			missing = append(missing, i)
		}
	}
	return missing
}
