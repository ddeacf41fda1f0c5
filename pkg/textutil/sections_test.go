package textutil

import (
	"errors"
	"strings"
	"testing"
)

const planText = `Intro line.

1. Summary
A short summary.

2. Market
Market analysis.

3. Budget
Budget details.`

func TestParseNumberedComplete(t *testing.T) {
	sections, missing := ParseNumbered(planText, 3)
	if len(missing) != 0 {
		t.Fatalf("unexpected missing: %v", missing)
	}
	if !strings.HasPrefix(sections[0], "1. Summary") {
		t.Fatalf("unexpected first section: %q", sections[0])
	}
	if !strings.Contains(sections[2], "Budget details.") {
		t.Fatalf("unexpected last section: %q", sections[2])
	}
}

func TestParseNumberedReportsMissing(t *testing.T) {
	sections, missing := ParseNumbered("1. Only section\ncontent", 3)
	if len(missing) != 2 || missing[0] != 1 || missing[1] != 2 {
		t.Fatalf("unexpected missing: %v", missing)
	}
	if sections[0] == "" || sections[1] != "" {
		t.Fatalf("unexpected sections: %q", sections)
	}
}

func TestParseNumberedIgnoresOutOfRange(t *testing.T) {
	_, missing := ParseNumbered("7. Not a wanted section\ntext", 3)
	if len(missing) != 3 {
		t.Fatalf("heading 7 should not satisfy any of 3 sections: %v", missing)
	}
}

func TestFillSectionsDirectParseSkipsFallbacks(t *testing.T) {
	called := false
	sections := FillSections(planText, 3, func(int) (string, error) {
		called = true
		return "", nil
	})
	if called {
		t.Fatalf("regenerator must not run when parsing succeeds")
	}
	for i, s := range sections {
		if strings.TrimSpace(s) == "" {
			t.Fatalf("section %d empty", i)
		}
	}
}

func TestFillSectionsBlockFallback(t *testing.T) {
	text := "alpha part\n\nbeta part\n\ngamma part"
	sections := FillSections(text, 3, nil)
	if sections[0] != "alpha part" || sections[1] != "beta part" || sections[2] != "gamma part" {
		t.Fatalf("unexpected sections: %q", sections)
	}
}

func TestFillSectionsRegeneration(t *testing.T) {
	text := "1. Present\ncontent here"
	sections := FillSections(text, 2, func(idx int) (string, error) {
		if idx == 1 {
			return "regenerated section", nil
		}
		return "", errors.New("should not be asked")
	})
	if sections[1] != "regenerated section" {
		t.Fatalf("unexpected sections: %q", sections)
	}
}

func TestFillSectionsEqualSplitLastResort(t *testing.T) {
	text := "no headings at all just a single undifferentiated blob of output text"
	sections := FillSections(text, 3, func(int) (string, error) {
		return "", errors.New("model down")
	})
	for i, s := range sections {
		if strings.TrimSpace(s) == "" {
			t.Fatalf("equal split left section %d empty: %q", i, sections)
		}
	}
}
