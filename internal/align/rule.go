// Package align reconciles the paragraphs of a source document with the
// paragraphs of an independently produced target-language rendering. Two
// aligners exist: a deterministic rule scorer used as fallback, and the
// oracle-driven sliding window aligner.
package align

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"shuttle/internal/document"
)

// DefaultThreshold is the minimum rule-score a candidate needs to be
// accepted.
const DefaultThreshold = 0.25

const (
	ruleSearchBack    = 2
	ruleSearchForward = 8

	weightLength   = 0.35
	weightNumerals = 0.25
	weightPosition = 0.2
	weightCaps     = 0.2

	// Translated text tends to run shorter than the source; the length score
	// peaks when the target is about 55% of the source length.
	lengthRatioPeak = 0.55
	positionDecay   = 0.15
)

// Rule aligns paragraph lists with a local confidence score and no external
// oracle. Matching is injective and single-pass: a single pointer walks the
// target list and each accepted candidate advances it.
func Rule(sources []document.SourceParagraph, targets []document.TargetParagraph, threshold float64) []document.AlignmentRecord {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	records := make([]document.AlignmentRecord, 0, len(sources))
	used := make(map[int]struct{})
	pointer := 0

	for _, src := range sources {
		bestIdx := -1
		bestScore := 0.0

		start := pointer - ruleSearchBack
		if start < 0 {
			start = 0
		}
		end := pointer + ruleSearchForward
		if end > len(targets) {
			end = len(targets)
		}
		for idx := start; idx < end; idx++ {
			if _, taken := used[idx]; taken {
				continue
			}
			score := matchScore(src.Text, targets[idx].Text, abs(idx-pointer))
			if score > bestScore {
				bestScore = score
				bestIdx = idx
			}
		}

		if bestIdx >= 0 && bestScore >= threshold {
			used[bestIdx] = struct{}{}
			pointer = bestIdx + 1
			records = append(records, document.AlignmentRecord{
				SourceIndex:   src.Index,
				TargetIndices: []int{bestIdx},
				Status:        document.StatusMatched,
				Confidence:    math.Round(bestScore*1000) / 1000,
				Coverage:      document.CoverageFull,
				Page:          src.Page,
				SourceText:    src.Text,
				TargetText:    targets[bestIdx].Text,
			})
			continue
		}
		records = append(records, document.AlignmentRecord{
			SourceIndex: src.Index,
			Status:      document.StatusMissing,
			Coverage:    document.CoverageMissing,
			Page:        src.Page,
			SourceText:  src.Text,
		})
	}
	return records
}

var (
	numeralRe     = regexp.MustCompile(`\d+`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][A-Za-z]*\b`)
)

// matchScore combines length-ratio plausibility, shared numeral tokens,
// positional distance, and shared capitalized tokens into a [0,1] score.
func matchScore(source, target string, positionDiff int) float64 {
	if source == "" || target == "" {
		return 0
	}
	score := weightLength * lengthScore(source, target)
	score += weightNumerals * overlapScore(numeralRe, source, target)
	score += weightPosition * math.Max(0, 1.0-float64(positionDiff)*positionDecay)
	score += weightCaps * overlapScore(capitalizedRe, source, target)
	return score
}

func lengthScore(source, target string) float64 {
	srcLen := utf8.RuneCountInString(source)
	if srcLen == 0 {
		return 0
	}
	ratio := float64(utf8.RuneCountInString(target)) / float64(srcLen)
	switch {
	case ratio >= 0.25 && ratio <= 1.0:
		return 1.0 - math.Abs(ratio-lengthRatioPeak)/0.45
	case ratio < 0.25:
		return ratio / 0.25 * 0.5
	default:
		return math.Max(0, 1.0-(ratio-1.0)/2)
	}
}

// overlapScore is the fraction of the source's tokens also present in the
// target. A source with no such tokens scores 1: absence is no evidence
// against the match.
func overlapScore(re *regexp.Regexp, source, target string) float64 {
	srcTokens := tokenSet(re, source)
	if len(srcTokens) == 0 {
		return 1
	}
	tgtTokens := tokenSet(re, target)
	common := 0
	for token := range srcTokens {
		if _, ok := tgtTokens[token]; ok {
			common++
		}
	}
	return float64(common) / float64(len(srcTokens))
}

func tokenSet(re *regexp.Regexp, text string) map[string]struct{} {
	tokens := re.FindAllString(text, -1)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[strings.TrimSpace(token)] = struct{}{}
	}
	return set
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
