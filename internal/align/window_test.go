package align_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shuttle/internal/align"
	"shuttle/internal/document"
	"shuttle/internal/logging"
	"shuttle/internal/services/oracle"
)

type judgeCall struct {
	sourceIDs []int
	targetIDs []int
}

// fakeOracle replays scripted responses; the last step repeats once the
// script runs out.
type fakeOracle struct {
	calls  []judgeCall
	script []func(sources, targets []oracle.Snippet) (oracle.Result, error)
	step   int
}

func (f *fakeOracle) Judge(ctx context.Context, sources, targets []oracle.Snippet) (oracle.Result, error) {
	call := judgeCall{}
	for _, snip := range sources {
		call.sourceIDs = append(call.sourceIDs, snip.ID)
	}
	for _, snip := range targets {
		call.targetIDs = append(call.targetIDs, snip.ID)
	}
	f.calls = append(f.calls, call)

	idx := f.step
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.step++
	return f.script[idx](sources, targets)
}

func matchedJudgment(sourceID int, targetIDs ...int) oracle.SourceJudgment {
	return oracle.SourceJudgment{
		SourceID:   sourceID,
		TargetIDs:  targetIDs,
		Status:     oracle.JudgmentMatched,
		Confidence: oracle.TierHigh,
	}
}

func newAligner(o align.Oracle, opts align.WindowOptions) *align.WindowAligner {
	return align.NewWindowAligner(o, opts, logging.NewNop())
}

func TestWindowAlignMatchesDiagonal(t *testing.T) {
	sources := sourcesOf("one", "two", "three")
	targets := targetsOf("一", "二", "三")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(s, _ []oracle.Snippet) (oracle.Result, error) {
			var result oracle.Result
			for _, snip := range s {
				result.Judgments = append(result.Judgments, matchedJudgment(snip.ID, snip.ID))
			}
			return result, nil
		},
	}}

	records, err := newAligner(fake, align.WindowOptions{}).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Status != document.StatusMatched {
			t.Fatalf("record %d not matched: %#v", i, rec)
		}
		if rec.Confidence != 0.9 {
			t.Fatalf("expected high-tier confidence 0.9, got %v", rec.Confidence)
		}
		if rec.Coverage != document.CoverageFull {
			t.Fatalf("expected full coverage, got %s", rec.Coverage)
		}
		if rec.TargetText != targets[i].Text {
			t.Fatalf("record %d has wrong target text %q", i, rec.TargetText)
		}
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single oracle call, got %d", len(fake.calls))
	}
}

func TestWindowAlignMixedStatuses(t *testing.T) {
	sources := sourcesOf("content", "page header", "omitted text")
	targets := targetsOf("内容")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{Judgments: []oracle.SourceJudgment{
				matchedJudgment(0, 0),
				{SourceID: 1, Status: oracle.JudgmentSkip, Confidence: oracle.TierHigh},
				{SourceID: 2, Status: oracle.JudgmentMissing, Confidence: oracle.TierHigh, Reason: "translator dropped it"},
			}}, nil
		},
	}}

	records, err := newAligner(fake, align.WindowOptions{}).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if records[1].Status != document.StatusSkip || records[1].Confidence != 0.9 || records[1].Coverage != document.CoverageSkip {
		t.Fatalf("unexpected skip record: %#v", records[1])
	}
	if records[2].Status != document.StatusMissing || records[2].Confidence != 0 {
		t.Fatalf("unexpected missing record: %#v", records[2])
	}
	if records[2].Note != "translator dropped it" {
		t.Fatalf("missing record lost its reason: %q", records[2].Note)
	}
}

func TestWindowDoublesAfterMaybeLater(t *testing.T) {
	sources := sourcesOf("alpha", "beta")
	targets := targetsOf("t0", "t1", "t2", "t3", "t4", "t5")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{
				Judgments: []oracle.SourceJudgment{
					{SourceID: 0, Status: oracle.JudgmentMaybeLater, Confidence: oracle.TierMedium},
					{SourceID: 1, Status: oracle.JudgmentMaybeLater, Confidence: oracle.TierMedium},
				},
				Window: oracle.WindowStatus{NeedExpand: true},
			}, nil
		},
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{Judgments: []oracle.SourceJudgment{
				matchedJudgment(0, 2),
				matchedJudgment(1, 3),
			}}, nil
		},
	}}

	opts := align.WindowOptions{SourceWindow: 2, BaseTargetWindow: 2, Overlap: 1, MaxTargetWindow: 8, MaxRetries: 3}
	records, err := newAligner(fake, opts).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 oracle calls, got %d", len(fake.calls))
	}
	if got := len(fake.calls[0].targetIDs); got != 2 {
		t.Fatalf("first call should see the base window, got %d targets", got)
	}
	if got := len(fake.calls[1].targetIDs); got != 4 {
		t.Fatalf("second call should see a doubled window, got %d targets", got)
	}
	for i, rec := range records {
		if !rec.Matched() {
			t.Fatalf("record %d should be matched after expansion: %#v", i, rec)
		}
	}
}

func TestWindowRetryBudgetFinalizesMissing(t *testing.T) {
	sources := sourcesOf("stubborn paragraph")
	targets := targetsOf("t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(s, _ []oracle.Snippet) (oracle.Result, error) {
			var result oracle.Result
			for _, snip := range s {
				result.Judgments = append(result.Judgments, oracle.SourceJudgment{
					SourceID: snip.ID, Status: oracle.JudgmentMaybeLater, Confidence: oracle.TierLow,
				})
			}
			result.Window.NeedExpand = true
			return result, nil
		},
	}}

	opts := align.WindowOptions{SourceWindow: 1, BaseTargetWindow: 2, Overlap: 1, MaxTargetWindow: 4, MaxRetries: 2}
	records, err := newAligner(fake, opts).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected exactly MaxRetries calls, got %d", len(fake.calls))
	}
	if records[0].Status != document.StatusMissing {
		t.Fatalf("expected missing after retry budget, got %#v", records[0])
	}
	if !strings.Contains(records[0].Note, "semantic non-match") {
		t.Fatalf("note should name the semantic non-match, got %q", records[0].Note)
	}
}

func TestWindowOracleFailuresDegradeToMissing(t *testing.T) {
	sources := sourcesOf("paragraph")
	targets := targetsOf("t0")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{}, errors.New("unparseable response")
		},
	}}

	opts := align.WindowOptions{SourceWindow: 1, BaseTargetWindow: 4, MaxRetries: 2}
	records, err := newAligner(fake, opts).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("oracle failures must not fail the alignment: %v", err)
	}
	if records[0].Status != document.StatusMissing {
		t.Fatalf("expected missing record, got %#v", records[0])
	}
	if !strings.Contains(records[0].Note, "parse failure") {
		t.Fatalf("note should name the parse failure, got %q", records[0].Note)
	}
}

func TestWindowCancelledContextStopsAlignment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{}, context.Canceled
		},
	}}

	_, err := newAligner(fake, align.WindowOptions{}).Align(ctx, sourcesOf("a"), targetsOf("b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWindowTargetSequenceEnded(t *testing.T) {
	sources := sourcesOf("first", "second")
	targets := targetsOf("t0")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{Judgments: []oracle.SourceJudgment{
				matchedJudgment(0, 0),
				{SourceID: 1, Status: oracle.JudgmentMaybeLater, Confidence: oracle.TierMedium},
			}}, nil
		},
	}}

	records, err := newAligner(fake, align.WindowOptions{}).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("no more calls once targets are exhausted, got %d", len(fake.calls))
	}
	if records[1].Status != document.StatusMissing {
		t.Fatalf("expected missing record: %#v", records[1])
	}
	if !strings.Contains(records[1].Note, "target sequence ended") {
		t.Fatalf("unexpected note: %q", records[1].Note)
	}
}

func TestWindowMultiTargetMatchIsOverlapCoverage(t *testing.T) {
	sources := sourcesOf("long paragraph split in two")
	targets := targetsOf("前半", "后半")

	fake := &fakeOracle{script: []func([]oracle.Snippet, []oracle.Snippet) (oracle.Result, error){
		func(_, _ []oracle.Snippet) (oracle.Result, error) {
			return oracle.Result{Judgments: []oracle.SourceJudgment{matchedJudgment(0, 1, 0)}}, nil
		},
	}}

	records, err := newAligner(fake, align.WindowOptions{}).Align(context.Background(), sources, targets)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	rec := records[0]
	if rec.Coverage != document.CoverageOverlap {
		t.Fatalf("expected overlap coverage, got %s", rec.Coverage)
	}
	if len(rec.TargetIndices) != 2 || rec.TargetIndices[0] != 0 || rec.TargetIndices[1] != 1 {
		t.Fatalf("target ids not sorted: %v", rec.TargetIndices)
	}
	if rec.TargetText != "前半\n\n后半" {
		t.Fatalf("unexpected joined target text: %q", rec.TargetText)
	}
}
