package align_test

import (
	"testing"

	"shuttle/internal/align"
	"shuttle/internal/document"
)

func sourcesOf(texts ...string) []document.SourceParagraph {
	out := make([]document.SourceParagraph, len(texts))
	for i, text := range texts {
		out[i] = document.SourceParagraph{Index: i, Page: 1, Text: text}
	}
	return out
}

func targetsOf(texts ...string) []document.TargetParagraph {
	out := make([]document.TargetParagraph, len(texts))
	for i, text := range texts {
		out[i] = document.TargetParagraph{Index: i, Text: text}
	}
	return out
}

func TestRuleMatchesParallelLists(t *testing.T) {
	sources := sourcesOf(
		"part 1 bonjour le monde entier",
		"part 2 a chapter about the storm",
		"part 3 the final line of the book",
	)
	targets := targetsOf(
		"第1部分 你好 全世界",
		"第2部分 关于风暴的一章",
		"第3部分 这本书的最后一行",
	)

	records := align.Rule(sources, targets, 0.25)
	if len(records) != len(sources) {
		t.Fatalf("expected one record per source, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Status != document.StatusMatched {
			t.Fatalf("source %d not matched: %#v", i, rec)
		}
		if len(rec.TargetIndices) != 1 || rec.TargetIndices[0] != i {
			t.Fatalf("source %d matched wrong target: %v", i, rec.TargetIndices)
		}
		if rec.Confidence < 0.25 || rec.Confidence > 1 {
			t.Fatalf("confidence out of range: %v", rec.Confidence)
		}
	}
}

func TestRuleMatchesSingleParagraphPair(t *testing.T) {
	sources := sourcesOf("Bonjour, comment allez-vous?")
	targets := targetsOf("你好，今天怎么样？")

	records := align.Rule(sources, targets, 0.25)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.Status != document.StatusMatched {
		t.Fatalf("expected matched, got %#v", rec)
	}
	if len(rec.TargetIndices) != 1 || rec.TargetIndices[0] != 0 {
		t.Fatalf("expected target index 0, got %v", rec.TargetIndices)
	}
	if rec.Confidence <= 0.25 {
		t.Fatalf("confidence should clear the threshold, got %v", rec.Confidence)
	}
}

func TestRuleIsInjective(t *testing.T) {
	// Both sources score best against the single plausible target; only one
	// may take it.
	sources := sourcesOf("hello world out there", "hello world out there")
	targets := targetsOf("你好世界")

	records := align.Rule(sources, targets, 0.25)
	taken := make(map[int]int)
	for _, rec := range records {
		for _, idx := range rec.TargetIndices {
			taken[idx]++
		}
	}
	for idx, count := range taken {
		if count > 1 {
			t.Fatalf("target %d claimed %d times", idx, count)
		}
	}
}

func TestRuleNumeralMismatchPrefersSharedNumbers(t *testing.T) {
	sources := sourcesOf("section 42 covers error handling in depth")
	targets := targetsOf(
		"第99节介绍日志记录",
		"第42节深入介绍错误处理",
	)
	records := align.Rule(sources, targets, 0.25)
	if !records[0].Matched() {
		t.Fatalf("expected a match: %#v", records[0])
	}
	if records[0].TargetIndices[0] != 1 {
		t.Fatalf("expected the shared-numeral target, got %v", records[0].TargetIndices)
	}
}

func TestRuleBelowThresholdIsMissing(t *testing.T) {
	sources := sourcesOf("a very long source paragraph that keeps going and going with plenty of words")
	// Far too short relative to the source and sharing nothing.
	targets := targetsOf("x")

	records := align.Rule(sources, targets, 0.7)
	if records[0].Status != document.StatusMissing {
		t.Fatalf("expected missing below threshold, got %#v", records[0])
	}
	if records[0].Coverage != document.CoverageMissing {
		t.Fatalf("expected missing coverage, got %s", records[0].Coverage)
	}
}

func TestRuleEmptyTargets(t *testing.T) {
	records := align.Rule(sourcesOf("lonely paragraph"), nil, 0.25)
	if len(records) != 1 || records[0].Status != document.StatusMissing {
		t.Fatalf("expected one missing record, got %#v", records)
	}
}
