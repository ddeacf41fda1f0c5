package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageShortTextUntouched(t *testing.T) {
	parts := SplitMessage("hello", 100)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("unexpected parts: %q", parts)
	}
}

func TestSplitMessageInvariants(t *testing.T) {
	cases := []struct {
		name string
		text string
		max  int
	}{
		{"paragraphs", "first paragraph here\n\nsecond paragraph follows\n\nthird one", 25},
		{"spaces only", strings.Repeat("word ", 50), 17},
		{"no breakpoints", strings.Repeat("x", 100), 9},
		{"unicode", strings.Repeat("бизнес план ", 30), 21},
		{"exact boundary", strings.Repeat("a", 40), 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := SplitMessage(tc.text, tc.max)
			for i, part := range parts {
				if utf8.RuneCountInString(part) > tc.max {
					t.Fatalf("part %d exceeds max (%d runes): %q", i, utf8.RuneCountInString(part), part)
				}
			}
			if joined := strings.Join(parts, ""); joined != tc.text {
				t.Fatalf("concatenation altered text:\n got %q\nwant %q", joined, tc.text)
			}
		})
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := "one two three\nfour five six seven eight"
	parts := SplitMessage(text, 20)
	if parts[0] != "one two three\n" {
		t.Fatalf("expected cut at newline, got %q", parts[0])
	}
}

func TestStripBold(t *testing.T) {
	got := StripBold("a **bold** and *light* and ***strong*** word")
	want := "a bold and light and strong word"
	if got != want {
		t.Fatalf("StripBold() = %q, want %q", got, want)
	}
}
