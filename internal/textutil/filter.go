// Package textutil holds small text helpers shared by the extraction boundary
// and the segmenter: boilerplate line filtering and filename-safe tokens.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

// LineFilter drops watermark and boilerplate lines from extracted page text.
// It combines configured regular expressions with lines detected as repeating
// across a majority of pages (headers, footers, print-shop stamps).
type LineFilter struct {
	patterns []*regexp.Regexp
	repeated map[string]struct{}
}

// NewLineFilter compiles the provided patterns. Patterns are matched
// case-insensitively against whole trimmed lines.
func NewLineFilter(patterns []string) (*LineFilter, error) {
	filter := &LineFilter{repeated: make(map[string]struct{})}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("filter pattern %q: %w", raw, err)
		}
		filter.patterns = append(filter.patterns, re)
	}
	return filter, nil
}

const (
	repeatedLineMaxLen  = 100
	repeatedPageFrac    = 0.6
	minPagesForDetected = 3
)

// DetectRepeated records short lines that appear on at least 60% of the
// supplied pages as boilerplate. Detection is skipped for very short
// documents where repetition is not meaningful.
func (f *LineFilter) DetectRepeated(pageTexts []string) {
	if len(pageTexts) < minPagesForDetected {
		return
	}
	counts := make(map[string]int)
	for _, text := range pageTexts {
		seen := make(map[string]struct{})
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || len(line) >= repeatedLineMaxLen {
				continue
			}
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			counts[line]++
		}
	}
	threshold := int(float64(len(pageTexts)) * repeatedPageFrac)
	if threshold < 2 {
		threshold = 2
	}
	for line, count := range counts {
		if count >= threshold {
			f.repeated[line] = struct{}{}
		}
	}
}

// RepeatedCount returns how many distinct boilerplate lines detection found.
func (f *LineFilter) RepeatedCount() int { return len(f.repeated) }

// Drop reports whether the line should be removed.
func (f *LineFilter) Drop(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if _, ok := f.repeated[line]; ok {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Apply filters every line of the text, preserving paragraph breaks. Blank
// lines inside the input mark paragraph boundaries and survive as long as
// content remains on both sides.
func (f *LineFilter) Apply(text string) string {
	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		var kept []string
		for _, line := range strings.Split(block, "\n") {
			if f.Drop(line) {
				continue
			}
			kept = append(kept, strings.TrimSpace(line))
		}
		if len(kept) > 0 {
			paragraphs = append(paragraphs, strings.Join(kept, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
