// Package segment packs extracted page text into bounded-length segments for
// translation. Segments never span pages; a page's segments concatenated in
// id order reproduce that page's paragraph text.
package segment

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"shuttle/internal/document"
)

// DefaultMaxChars bounds segment length when the caller does not override it.
const DefaultMaxChars = 2000

const paragraphSeparator = "\n\n"

// Split divides page text into segments of at most maxChars characters,
// accumulating blank-line-delimited paragraphs greedily. A single paragraph
// longer than maxChars is split on sentence-terminal punctuation and packed
// with the same rule; only an unsplittable sentence may exceed the bound.
func Split(pages []document.PageText, maxChars int) []document.Segment {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var segments []document.Segment
	nextID := 0
	for _, page := range pages {
		text := norm.NFC.String(strings.TrimSpace(page.Text))
		if text == "" {
			continue
		}
		flush := func(buffer string) {
			if buffer == "" {
				return
			}
			segments = append(segments, document.Segment{ID: nextID, Page: page.Page, Text: buffer})
			nextID++
		}

		buffer := ""
		for _, para := range strings.Split(text, paragraphSeparator) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if fits(buffer, para, paragraphSeparator, maxChars) {
				buffer = join(buffer, para, paragraphSeparator)
				continue
			}
			flush(buffer)
			if utf8.RuneCountInString(para) > maxChars {
				buffer = packSentences(para, maxChars, flush)
				continue
			}
			buffer = para
		}
		flush(buffer)
	}
	return segments
}

// packSentences splits an oversized paragraph on sentence boundaries and
// greedily re-packs the pieces, flushing full buffers through flush. The
// final partial buffer is returned so the caller can keep accumulating
// subsequent paragraphs into it.
func packSentences(para string, maxChars int, flush func(string)) string {
	buffer := ""
	for _, sentence := range splitSentences(para) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if fits(buffer, sentence, " ", maxChars) {
			buffer = join(buffer, sentence, " ")
			continue
		}
		flush(buffer)
		buffer = sentence
	}
	return buffer
}

var sentenceBreaks = strings.NewReplacer(
	"。", "。\n",
	"！", "！\n",
	"？", "？\n",
	". ", ".\n",
	"! ", "!\n",
	"? ", "?\n",
)

func splitSentences(text string) []string {
	return strings.Split(sentenceBreaks.Replace(text), "\n")
}

func fits(buffer, next, sep string, maxChars int) bool {
	if buffer == "" {
		return utf8.RuneCountInString(next) <= maxChars
	}
	total := utf8.RuneCountInString(buffer) + utf8.RuneCountInString(sep) + utf8.RuneCountInString(next)
	return total <= maxChars
}

func join(buffer, next, sep string) string {
	if buffer == "" {
		return next
	}
	return buffer + sep + next
}
