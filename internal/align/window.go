package align

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"shuttle/internal/document"
	"shuttle/internal/logging"
	"shuttle/internal/services/oracle"
)

// Oracle judges batches of labeled snippets. Satisfied by *oracle.Client.
type Oracle interface {
	Judge(ctx context.Context, sources, targets []oracle.Snippet) (oracle.Result, error)
}

// WindowOptions tunes the sliding dual-window aligner.
type WindowOptions struct {
	// SourceWindow is the number of fresh source paragraphs drawn per
	// iteration.
	SourceWindow int
	// BaseTargetWindow is the target slice length when no retries are
	// outstanding.
	BaseTargetWindow int
	// Overlap keeps this many already-matched target paragraphs visible when
	// the target window slides forward.
	Overlap int
	// MaxTargetWindow caps window doubling.
	MaxTargetWindow int
	// MaxRetries bounds how many iterations a single source id may stay
	// unresolved, whether from unparseable responses or repeated
	// "maybe later" judgments.
	MaxRetries int
}

// DefaultWindowOptions returns the tuning the original workflow shipped with.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		SourceWindow:     5,
		BaseTargetWindow: 30,
		Overlap:          3,
		MaxTargetWindow:  60,
		MaxRetries:       3,
	}
}

func (o WindowOptions) withDefaults() WindowOptions {
	def := DefaultWindowOptions()
	if o.SourceWindow <= 0 {
		o.SourceWindow = def.SourceWindow
	}
	if o.BaseTargetWindow <= 0 {
		o.BaseTargetWindow = def.BaseTargetWindow
	}
	if o.Overlap < 0 {
		o.Overlap = def.Overlap
	}
	if o.MaxTargetWindow < o.BaseTargetWindow {
		o.MaxTargetWindow = o.BaseTargetWindow * 2
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	return o
}

// WindowAligner reconciles two paragraph sequences whose correspondence may
// be non-monotonic, many-to-many, overlapping, or absent. Source paragraphs
// move through a small window while the oracle searches a larger target
// window; unresolved ids are carried forward and the target window doubles
// until either a match lands or the search is exhausted.
type WindowAligner struct {
	oracle Oracle
	opts   WindowOptions
	logger *slog.Logger
}

// NewWindowAligner builds an aligner over the given oracle.
func NewWindowAligner(o Oracle, opts WindowOptions, logger *slog.Logger) *WindowAligner {
	return &WindowAligner{
		oracle: o,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "window-aligner"),
	}
}

// matchState accumulates target references for one source id across
// iterations until the id is finalized.
type matchState struct {
	targetIDs map[int]struct{}
	tier      oracle.Tier
	note      string
}

// Align produces exactly one terminal record per source paragraph. It
// returns an error only when the context is cancelled; oracle failures are
// contained and degrade to missing records after the per-id retry budget.
func (a *WindowAligner) Align(ctx context.Context, sources []document.SourceParagraph, targets []document.TargetParagraph) ([]document.AlignmentRecord, error) {
	matched := make(map[int]*matchState)
	finalized := make(map[int]document.AlignmentRecord)
	retryCounts := make(map[int]int)

	var pending []int
	pendingSet := make(map[int]struct{})
	addPending := func(id int) {
		if _, ok := pendingSet[id]; ok {
			return
		}
		pendingSet[id] = struct{}{}
		pending = append(pending, id)
		sort.Ints(pending)
	}
	removePending := func(id int) {
		if _, ok := pendingSet[id]; !ok {
			return
		}
		delete(pendingSet, id)
		for i, v := range pending {
			if v == id {
				pending = append(pending[:i], pending[i+1:]...)
				break
			}
		}
	}
	finalize := func(id int, status document.AlignStatus, confidence float64, note string) {
		if _, done := finalized[id]; done {
			return
		}
		src := sources[id]
		coverage := document.CoverageMissing
		if status == document.StatusSkip {
			coverage = document.CoverageSkip
		}
		finalized[id] = document.AlignmentRecord{
			SourceIndex: id,
			Status:      status,
			Confidence:  confidence,
			Coverage:    coverage,
			Note:        note,
			Page:        src.Page,
			SourceText:  src.Text,
		}
		removePending(id)
		delete(matched, id)
	}
	// exhaust charges one retry against the id and finalizes it as missing
	// once the budget runs out. Returns whether the id is still live.
	exhaust := func(id int, note string) bool {
		retryCounts[id]++
		if retryCounts[id] >= a.opts.MaxRetries {
			finalize(id, document.StatusMissing, 0, note)
			return false
		}
		return true
	}

	sourceCursor := 0
	targetCursor := 0
	currentWindow := a.opts.BaseTargetWindow
	iteration := 0

	for sourceCursor < len(sources) || len(pending) > 0 {
		iteration++

		forwardEnd := sourceCursor + a.opts.SourceWindow
		if forwardEnd > len(sources) {
			forwardEnd = len(sources)
		}
		batchIDs := append([]int{}, pending...)
		for id := sourceCursor; id < forwardEnd; id++ {
			if _, ok := pendingSet[id]; !ok {
				batchIDs = append(batchIDs, id)
			}
		}
		if len(batchIDs) == 0 {
			break
		}

		windowEnd := targetCursor + currentWindow
		if windowEnd > len(targets) {
			windowEnd = len(targets)
		}

		batchSources := make([]oracle.Snippet, 0, len(batchIDs))
		for _, id := range batchIDs {
			batchSources = append(batchSources, oracle.Snippet{ID: id, Page: sources[id].Page, Text: sources[id].Text})
		}
		batchTargets := make([]oracle.Snippet, 0, windowEnd-targetCursor)
		for idx := targetCursor; idx < windowEnd; idx++ {
			batchTargets = append(batchTargets, oracle.Snippet{ID: idx, Text: targets[idx].Text})
		}

		a.logger.Debug("aligning batch",
			logging.Int(logging.FieldBatch, iteration),
			logging.Int("sources", len(batchSources)),
			logging.Int("target_from", targetCursor),
			logging.Int("target_to", windowEnd),
			logging.Int("retrying", len(pending)),
		)

		result, err := a.oracle.Judge(ctx, batchSources, batchTargets)
		// The forward window was drawn either way; from here on those ids
		// live in pendingRetry or a terminal record, never the cursor.
		sourceCursor = forwardEnd
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			for _, id := range batchIDs {
				if _, done := finalized[id]; done {
					continue
				}
				if exhaust(id, "oracle retries exhausted (parse failure)") {
					addPending(id)
				}
			}
			continue
		}

		maxMatchedTarget := -1
		needExpand := false
		for _, judgment := range result.Judgments {
			id := judgment.SourceID
			if _, done := finalized[id]; done {
				continue
			}
			switch judgment.Status {
			case oracle.JudgmentMatched:
				state := matched[id]
				if state == nil {
					state = &matchState{targetIDs: make(map[int]struct{}), tier: judgment.Confidence, note: judgment.Reason}
					matched[id] = state
				}
				for _, tid := range judgment.TargetIDs {
					state.targetIDs[tid] = struct{}{}
					if tid > maxMatchedTarget {
						maxMatchedTarget = tid
					}
				}
				removePending(id)
			case oracle.JudgmentSkip:
				finalize(id, document.StatusSkip, 0.9, skipNote(judgment.Reason))
			case oracle.JudgmentMissing:
				finalize(id, document.StatusMissing, 0, missingNote(judgment.Reason))
			case oracle.JudgmentMaybeLater:
				if exhaust(id, "no rendering found (semantic non-match)") {
					addPending(id)
					needExpand = true
				}
			}
		}
		for _, id := range result.Window.Uncovered {
			if _, done := finalized[id]; done {
				continue
			}
			if matched[id] != nil {
				continue
			}
			if exhaust(id, "no rendering found (semantic non-match)") {
				addPending(id)
				needExpand = true
			}
		}

		if maxMatchedTarget >= 0 {
			if next := maxMatchedTarget - a.opts.Overlap; next > targetCursor {
				targetCursor = next
			}
		}

		if needExpand && len(pending) > 0 {
			currentWindow = min(currentWindow*2, a.opts.MaxTargetWindow)
		} else {
			currentWindow = a.opts.BaseTargetWindow
		}

		if windowEnd >= len(targets) && len(pending) > 0 {
			for _, id := range append([]int{}, pending...) {
				finalize(id, document.StatusMissing, 0, "search exhausted: target sequence ended")
			}
		}
	}

	for _, id := range append([]int{}, pending...) {
		finalize(id, document.StatusMissing, 0, "no rendering found")
	}

	return a.reconcile(sources, targets, matched, finalized), nil
}

// reconcile folds accumulated matches and terminal records into one ordered
// record per source paragraph.
func (a *WindowAligner) reconcile(sources []document.SourceParagraph, targets []document.TargetParagraph, matched map[int]*matchState, finalized map[int]document.AlignmentRecord) []document.AlignmentRecord {
	records := make([]document.AlignmentRecord, 0, len(sources))
	for _, src := range sources {
		if rec, ok := finalized[src.Index]; ok {
			records = append(records, rec)
			continue
		}
		state := matched[src.Index]
		if state == nil || len(state.targetIDs) == 0 {
			records = append(records, document.AlignmentRecord{
				SourceIndex: src.Index,
				Status:      document.StatusMissing,
				Coverage:    document.CoverageMissing,
				Note:        "no rendering found",
				Page:        src.Page,
				SourceText:  src.Text,
			})
			continue
		}

		ids := make([]int, 0, len(state.targetIDs))
		for id := range state.targetIDs {
			if id >= 0 && id < len(targets) {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		texts := make([]string, 0, len(ids))
		for _, id := range ids {
			texts = append(texts, targets[id].Text)
		}
		coverage := document.CoverageFull
		if len(ids) > 1 {
			coverage = document.CoverageOverlap
		}
		records = append(records, document.AlignmentRecord{
			SourceIndex:   src.Index,
			TargetIndices: ids,
			Status:        document.StatusMatched,
			Confidence:    state.tier.Confidence(),
			Coverage:      coverage,
			Note:          state.note,
			Page:          src.Page,
			SourceText:    src.Text,
			TargetText:    strings.Join(texts, "\n\n"),
		})
	}
	return records
}

func skipNote(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "boilerplate, no rendering expected"
	}
	return reason
}

func missingNote(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "confirmed omission"
	}
	return reason
}
