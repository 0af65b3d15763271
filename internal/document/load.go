package document

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadPages reads the upstream extraction output for the source document: a
// JSON array of {page, text} objects. Pages are returned sorted by page
// number with empty pages dropped.
func LoadPages(path string) ([]PageText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source pages: %w", err)
	}
	var pages []PageText
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode source pages %s: %w", path, err)
	}
	out := pages[:0]
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		out = append(out, page)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out, nil
}

// LoadTargets reads the extracted target-rendering paragraphs: a JSON array
// of {index, text} objects. Empty paragraphs are dropped and indices are
// reassigned sequentially so downstream ids stay dense.
func LoadTargets(path string) ([]TargetParagraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read target paragraphs: %w", err)
	}
	var paragraphs []TargetParagraph
	if err := json.Unmarshal(data, &paragraphs); err != nil {
		return nil, fmt.Errorf("decode target paragraphs %s: %w", path, err)
	}
	out := make([]TargetParagraph, 0, len(paragraphs))
	for _, para := range paragraphs {
		text := strings.TrimSpace(para.Text)
		if text == "" {
			continue
		}
		out = append(out, TargetParagraph{Index: len(out), Text: text})
	}
	return out, nil
}

// ParagraphsFromPages splits page text into blank-line-delimited source
// paragraphs with document-wide sequential indices.
func ParagraphsFromPages(pages []PageText) []SourceParagraph {
	var paragraphs []SourceParagraph
	for _, page := range pages {
		for _, block := range strings.Split(page.Text, "\n\n") {
			text := strings.TrimSpace(block)
			if text == "" {
				continue
			}
			paragraphs = append(paragraphs, SourceParagraph{
				Index: len(paragraphs),
				Page:  page.Page,
				Text:  text,
			})
		}
	}
	return paragraphs
}

// FilterPageRange keeps pages within [start, end]. Zero bounds mean
// unbounded on that side.
func FilterPageRange(pages []PageText, start, end int) []PageText {
	if start <= 0 && end <= 0 {
		return pages
	}
	out := make([]PageText, 0, len(pages))
	for _, page := range pages {
		if start > 0 && page.Page < start {
			continue
		}
		if end > 0 && page.Page > end {
			continue
		}
		out = append(out, page)
	}
	return out
}
