package textutil_test

import (
	"strings"
	"testing"

	"shuttle/internal/textutil"
)

func TestLineFilterDropsConfiguredPatterns(t *testing.T) {
	filter, err := textutil.NewLineFilter([]string{`^scanned by .*$`, `example\.com`})
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}
	if !filter.Drop("Scanned by SomeArchive") {
		t.Fatal("pattern matching should be case-insensitive")
	}
	if !filter.Drop("visit example.com for more") {
		t.Fatal("substring pattern should drop the line")
	}
	if filter.Drop("an ordinary paragraph line") {
		t.Fatal("ordinary content must survive")
	}
}

func TestLineFilterRejectsBadPattern(t *testing.T) {
	if _, err := textutil.NewLineFilter([]string{`([unclosed`}); err == nil {
		t.Fatal("expected compile error for malformed pattern")
	}
}

func TestDetectRepeatedFlagsMajorityLines(t *testing.T) {
	filter, err := textutil.NewLineFilter(nil)
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}

	pages := []string{
		"SOME PUBLISHING HOUSE\nchapter one begins here",
		"SOME PUBLISHING HOUSE\nthe story continues",
		"SOME PUBLISHING HOUSE\nand wraps up",
		"a page without the stamp",
	}
	filter.DetectRepeated(pages)

	if filter.RepeatedCount() != 1 {
		t.Fatalf("expected 1 repeated line, got %d", filter.RepeatedCount())
	}
	if !filter.Drop("SOME PUBLISHING HOUSE") {
		t.Fatal("repeated stamp should be dropped")
	}
	if filter.Drop("chapter one begins here") {
		t.Fatal("once-seen content must survive")
	}
}

func TestDetectRepeatedSkipsShortDocuments(t *testing.T) {
	filter, err := textutil.NewLineFilter(nil)
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}
	filter.DetectRepeated([]string{"stamp\ntext", "stamp\nmore text"})
	if filter.RepeatedCount() != 0 {
		t.Fatalf("two pages are not enough for detection, got %d repeated lines", filter.RepeatedCount())
	}
}

func TestDetectRepeatedIgnoresLongLines(t *testing.T) {
	filter, err := textutil.NewLineFilter(nil)
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}
	long := strings.Repeat("x", 120)
	filter.DetectRepeated([]string{long, long, long})
	if filter.Drop(long) {
		t.Fatal("long lines are body text, never boilerplate")
	}
}

func TestApplyPreservesParagraphBreaks(t *testing.T) {
	filter, err := textutil.NewLineFilter([]string{`^page \d+$`})
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}

	in := "page 1\nfirst paragraph line one\nfirst paragraph line two\n\npage 2\n\nsecond paragraph"
	want := "first paragraph line one\nfirst paragraph line two\n\nsecond paragraph"
	if got := filter.Apply(in); got != want {
		t.Fatalf("Apply mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestApplyDropsFullyFilteredText(t *testing.T) {
	filter, err := textutil.NewLineFilter([]string{`.*watermark.*`})
	if err != nil {
		t.Fatalf("NewLineFilter failed: %v", err)
	}
	if got := filter.Apply("watermark top\n\nwatermark bottom"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"x-ai/grok-4.1-fast", "x-ai_grok-4_1-fast"},
		{"Deep Review Model", "deep_review_model"},
		{"___", "unknown"},
		{"", "unknown"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
