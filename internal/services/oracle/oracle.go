// Package oracle consults an external chat-completion model for semantic
// correspondence judgments over batched, labeled source and target snippets.
// Responses are validated against a strict schema; any violation surfaces as
// services.ErrOracleParse and is never coerced into a missing judgment.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/services/llm"
)

// snippetCap bounds how much of each paragraph is shown to the model.
const snippetCap = 500

// Judgment enumerates the per-source-id outcomes the oracle may return.
type Judgment string

const (
	JudgmentMatched    Judgment = "matched"
	JudgmentMaybeLater Judgment = "not_found_maybe_later"
	JudgmentSkip       Judgment = "not_found_skip"
	JudgmentMissing    Judgment = "missing"
)

// Tier is the oracle's confidence bucket for a matched judgment.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Confidence maps a tier to the numeric confidence recorded on alignment
// records.
func (t Tier) Confidence() float64 {
	switch t {
	case TierHigh:
		return 0.9
	case TierLow:
		return 0.3
	default:
		return 0.6
	}
}

// Snippet is one labeled paragraph offered to the oracle.
type Snippet struct {
	ID   int
	Page int
	Text string
}

// SourceJudgment is the oracle's verdict for one source id.
type SourceJudgment struct {
	SourceID   int
	TargetIDs  []int
	Status     Judgment
	Confidence Tier
	Reason     string
}

// WindowStatus reports whether the oracle believes any requested id's
// correspondent lies beyond the supplied target batch.
type WindowStatus struct {
	NeedExpand bool
	Uncovered  []int
}

// Result is a validated oracle response for one batch.
type Result struct {
	Judgments []SourceJudgment
	Window    WindowStatus
}

// Client issues correspondence requests against a fixed model.
type Client struct {
	llm    *llm.Client
	model  string
	logger *slog.Logger
}

// NewClient wires an oracle on top of a shared llm client.
func NewClient(client *llm.Client, model string, logger *slog.Logger) *Client {
	return &Client{
		llm:    client,
		model:  model,
		logger: logging.NewComponentLogger(logger, "oracle"),
	}
}

// Judge submits one labeled batch and returns the validated judgments.
// Transport failures and unparseable payloads are both returned as errors;
// the caller re-queues the batch either way.
func (c *Client) Judge(ctx context.Context, sources, targets []Snippet) (Result, error) {
	if len(sources) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "oracle", "judge", "empty source batch", nil)
	}
	payload, err := c.llm.CompleteJSON(ctx, c.model, systemPrompt, buildUserPrompt(sources, targets))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "oracle", "judge", "completion failed", err)
	}
	result, err := decodeResult(payload, sources, targets)
	if err != nil {
		c.logger.Warn("discarding unparseable oracle response",
			logging.Error(err),
			logging.String(logging.FieldEventType, "oracle_parse_failed"),
			logging.Int("sources", len(sources)),
		)
		return Result{}, err
	}
	return result, nil
}

func buildUserPrompt(sources, targets []Snippet) string {
	var b strings.Builder
	b.WriteString("## Source paragraphs\n\n")
	for _, snip := range sources {
		fmt.Fprintf(&b, "[SOURCE %d] (page %d)\n%s\n\n", snip.ID, snip.Page, truncate(snip.Text))
	}
	b.WriteString("## Target paragraphs\n\n")
	for _, snip := range targets {
		fmt.Fprintf(&b, "[TARGET %d]\n%s\n\n", snip.ID, truncate(snip.Text))
	}
	b.WriteString("Return the alignment strictly in the JSON format described above.")
	return b.String()
}

func truncate(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= snippetCap {
		return string(runes)
	}
	return string(runes[:snippetCap])
}

const systemPrompt = `You are an expert at aligning a source document with an independently produced translation.

You receive numbered source paragraphs and numbered target paragraphs. The target list is only a window into the translation: a source paragraph's rendering may lie after the window. Correspondence may be many-to-one, one-to-many, overlapping, or absent (the translator omitted a paragraph, or the source paragraph is boilerplate that is never translated, such as publishing information, headers, or footers).

For every source paragraph decide exactly one status:
- "matched": the listed target ids render this source paragraph
- "not_found_maybe_later": content that should have a rendering, probably beyond this window
- "not_found_skip": boilerplate or non-content that needs no rendering
- "missing": body content with no rendering anywhere, a confirmed omission

Judge by semantic correspondence, shared numbers and proper names, paragraph length and structure, and order consistency.

Respond with JSON only, in exactly this shape:
{
  "source_to_translation": [
    {"source_id": 1, "translation_ids": [1], "status": "matched", "confidence": "high"},
    {"source_id": 2, "translation_ids": [], "status": "not_found_maybe_later", "reason": "..."}
  ],
  "window_status": {
    "need_expand_window": false,
    "uncovered_sources": []
  }
}
"confidence" is one of "high", "medium", "low" and only meaningful for "matched". Set "need_expand_window" to true and list the affected ids in "uncovered_sources" when any rendering likely lies beyond the supplied target window.`
