package oracle

import (
	"fmt"

	"shuttle/internal/services"
	"shuttle/internal/services/llm"
)

type wirePayload struct {
	SourceToTranslation []wireJudgment   `json:"source_to_translation"`
	WindowStatus        wireWindowStatus `json:"window_status"`
}

type wireJudgment struct {
	SourceID       int    `json:"source_id"`
	TranslationIDs []int  `json:"translation_ids"`
	Status         string `json:"status"`
	Confidence     string `json:"confidence"`
	Reason         string `json:"reason"`
}

type wireWindowStatus struct {
	NeedExpandWindow bool  `json:"need_expand_window"`
	UncoveredSources []int `json:"uncovered_sources"`
}

// decodeResult validates the raw payload against the response schema. Every
// violation is an ErrOracleParse: unknown status values, matched judgments
// without target ids, references to ids that were never offered in the batch.
func decodeResult(payload string, sources, targets []Snippet) (Result, error) {
	var wire wirePayload
	if err := llm.DecodeJSON(payload, &wire); err != nil {
		return Result{}, services.Wrap(services.ErrOracleParse, "oracle", "decode", "invalid json", err)
	}
	if len(wire.SourceToTranslation) == 0 {
		return Result{}, services.Wrap(services.ErrOracleParse, "oracle", "decode", "no judgments in response", nil)
	}

	offeredSources := idSet(sources)
	offeredTargets := idSet(targets)
	seen := make(map[int]struct{}, len(wire.SourceToTranslation))

	result := Result{Judgments: make([]SourceJudgment, 0, len(wire.SourceToTranslation))}
	for _, wj := range wire.SourceToTranslation {
		if _, ok := offeredSources[wj.SourceID]; !ok {
			return Result{}, parseErrorf("judgment references unknown source id %d", wj.SourceID)
		}
		if _, dup := seen[wj.SourceID]; dup {
			// Tolerate duplicates, first verdict wins.
			continue
		}
		seen[wj.SourceID] = struct{}{}

		status := Judgment(wj.Status)
		switch status {
		case JudgmentMatched:
			if len(wj.TranslationIDs) == 0 {
				return Result{}, parseErrorf("matched judgment for source %d has no target ids", wj.SourceID)
			}
			for _, id := range wj.TranslationIDs {
				if _, ok := offeredTargets[id]; !ok {
					return Result{}, parseErrorf("judgment for source %d references target id %d outside the window", wj.SourceID, id)
				}
			}
		case JudgmentMaybeLater, JudgmentSkip, JudgmentMissing:
			// Non-matched statuses carry no target ids.
		default:
			return Result{}, parseErrorf("unknown status %q for source %d", wj.Status, wj.SourceID)
		}

		tier := Tier(wj.Confidence)
		switch tier {
		case TierHigh, TierMedium, TierLow:
		case "":
			tier = TierMedium
		default:
			return Result{}, parseErrorf("unknown confidence %q for source %d", wj.Confidence, wj.SourceID)
		}

		judgment := SourceJudgment{
			SourceID:   wj.SourceID,
			Status:     status,
			Confidence: tier,
			Reason:     wj.Reason,
		}
		if status == JudgmentMatched {
			judgment.TargetIDs = append(judgment.TargetIDs, wj.TranslationIDs...)
		}
		result.Judgments = append(result.Judgments, judgment)
	}

	result.Window = WindowStatus{NeedExpand: wire.WindowStatus.NeedExpandWindow}
	for _, id := range wire.WindowStatus.UncoveredSources {
		if _, ok := offeredSources[id]; ok {
			result.Window.Uncovered = append(result.Window.Uncovered, id)
		}
	}
	return result, nil
}

func parseErrorf(format string, args ...any) error {
	return services.Wrap(services.ErrOracleParse, "oracle", "decode", fmt.Sprintf(format, args...), nil)
}

func idSet(snippets []Snippet) map[int]struct{} {
	set := make(map[int]struct{}, len(snippets))
	for _, snip := range snippets {
		set[snip.ID] = struct{}{}
	}
	return set
}
