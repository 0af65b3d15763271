// Package translate fans one unit of source text out to several translation
// models, then asks an integration model to merge the candidates into a
// final rendering. When a unit carries an existing target rendering the
// integration step runs in review mode instead, editing that rendering
// against the candidates.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/services/llm"
)

// Outcome carries everything one unit's translation produced.
type Outcome struct {
	// Outputs maps "index_display-name" to each model's candidate.
	Outputs map[string]string
	// Final is the integrated (or reviewed) rendering.
	Final string
	// Note is the integration model's analysis of how it merged the
	// candidates, or its review remarks.
	Note string
}

// Spec couples a model ref with the prompt it translates under. An empty
// prompt inherits the translator's default.
type Spec struct {
	Ref    ModelRef
	Prompt string
}

// Options configures a Translator.
type Options struct {
	Models      []Spec
	Integration ModelRef

	TranslationPrompt string
	IntegrationPrompt string
	ReviewPrompt      string
}

// Translator is safe for concurrent use; every method issues only
// per-call state through shared stateless clients.
type Translator struct {
	models            []binding
	integration       binding
	reviewPrompt      string
	integrationPrompt string
	logger            *slog.Logger
}

// New resolves every model ref once and returns a ready translator.
func New(pool *llm.Pool, defaults llm.Config, opts Options, logger *slog.Logger) (*Translator, error) {
	if len(opts.Models) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "new", "at least one translation model required", nil)
	}
	translationPrompt := opts.TranslationPrompt
	if strings.TrimSpace(translationPrompt) == "" {
		translationPrompt = DefaultTranslationPrompt
	}
	integrationPrompt := opts.IntegrationPrompt
	if strings.TrimSpace(integrationPrompt) == "" {
		integrationPrompt = DefaultIntegrationPrompt
	}
	reviewPrompt := opts.ReviewPrompt
	if strings.TrimSpace(reviewPrompt) == "" {
		reviewPrompt = DefaultReviewPrompt
	}

	t := &Translator{
		reviewPrompt:      reviewPrompt,
		integrationPrompt: integrationPrompt,
		logger:            logging.NewComponentLogger(logger, "translator"),
	}
	for _, spec := range opts.Models {
		prompt := spec.Prompt
		if strings.TrimSpace(prompt) == "" {
			prompt = translationPrompt
		}
		bound, err := spec.Ref.resolve(pool, defaults, prompt)
		if err != nil {
			return nil, err
		}
		t.models = append(t.models, bound)
	}
	integrationRef := opts.Integration
	if strings.TrimSpace(integrationRef.Model) == "" {
		integrationRef = opts.Models[0].Ref
	}
	bound, err := integrationRef.resolve(pool, defaults, "")
	if err != nil {
		return nil, err
	}
	t.integration = bound
	return t, nil
}

// Translate runs the full fan-out plus integration flow for one source text.
func (t *Translator) Translate(ctx context.Context, original string) (Outcome, error) {
	outputs, err := t.fanOut(ctx, original)
	if err != nil {
		return Outcome{}, err
	}
	note, final, err := t.integrate(ctx, t.integrationPrompt, integrationContent(original, "", "", outputs), markerAnalysis, markerTranslation)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Outputs: outputs, Final: final, Note: note}, nil
}

// Review runs the flow for a unit that already has a target rendering: the
// candidates become reference material and the integration model edits the
// existing rendering.
func (t *Translator) Review(ctx context.Context, original, reference, alignmentNote string) (Outcome, error) {
	outputs, err := t.fanOut(ctx, original)
	if err != nil {
		return Outcome{}, err
	}
	note, final, err := t.integrate(ctx, t.reviewPrompt, integrationContent(original, reference, alignmentNote, outputs), markerReview, markerFinal)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Outputs: outputs, Final: final, Note: note}, nil
}

// fanOut calls every translation model concurrently. A single model failure
// degrades to a bracketed failure marker in its slot; only all models
// failing is an error.
func (t *Translator) fanOut(ctx context.Context, original string) (map[string]string, error) {
	results := make([]string, len(t.models))
	failures := make([]error, len(t.models))

	var wg sync.WaitGroup
	for i, model := range t.models {
		wg.Add(1)
		go func(i int, model binding) {
			defer wg.Done()
			content, err := model.client.Complete(ctx, model.model, model.prompt, translationRequest(original))
			if err != nil {
				failures[i] = err
				results[i] = fmt.Sprintf("[translation by %s failed: %v]", model.display, err)
				return
			}
			results[i] = content
		}(i, model)
	}
	wg.Wait()

	failed := 0
	for i, err := range failures {
		if err == nil {
			continue
		}
		failed++
		t.logger.Warn("translation model failed",
			logging.Error(err),
			logging.String(logging.FieldModel, t.models[i].display),
			logging.String(logging.FieldEventType, "translation_model_failed"),
		)
	}
	if failed == len(t.models) {
		return nil, services.Wrap(services.ErrTransient, "translate", "fan-out", "every translation model failed", failures[0])
	}

	outputs := make(map[string]string, len(results))
	for i, content := range results {
		outputs[fmt.Sprintf("%d_%s", i+1, t.models[i].display)] = content
	}
	return outputs, nil
}

func (t *Translator) integrate(ctx context.Context, prompt, content, noteMarker, finalMarker string) (note, final string, err error) {
	raw, err := t.integration.client.Complete(ctx, t.integration.model, prompt, content)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, "translate", "integrate", "integration model failed", err)
	}
	note, final = splitSections(raw, noteMarker, finalMarker)
	return note, final, nil
}

func translationRequest(original string) string {
	return "Translate the following text:\n\n" + original
}

func integrationContent(original, reference, alignmentNote string, outputs map[string]string) string {
	var b strings.Builder
	b.WriteString("## Source text\n\n")
	b.WriteString(original)
	if strings.TrimSpace(reference) != "" {
		b.WriteString("\n\n## Existing rendering (to review)\n\n")
		b.WriteString(reference)
		if strings.TrimSpace(alignmentNote) != "" {
			b.WriteString("\n\nNote: ")
			b.WriteString(alignmentNote)
		}
	}
	b.WriteString("\n\n## Candidate translations\n\n")
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		display := key
		if idx := strings.Index(key, "_"); idx >= 0 {
			display = key[idx+1:]
		}
		fmt.Fprintf(&b, "### Translator %d (%s)\n\n%s\n\n", i+1, display, outputs[key])
	}
	b.WriteString("## Produce your output in the requested format")
	return b.String()
}

const (
	markerAnalysis    = "[analysis]"
	markerTranslation = "[translation]"
	markerReview      = "[review]"
	markerFinal       = "[final]"
)

// splitSections pulls the two labeled sections out of an integration reply by
// scanning for marker lines. Markers are matched case-insensitively at the
// start of a line; indexing a lowercased copy would go wrong for code points
// whose lowercase form changes byte length. A reply without both markers is
// used whole as the final text.
func splitSections(raw, noteMarker, finalMarker string) (note, final string) {
	lines := strings.Split(raw, "\n")
	noteAt, finalAt := -1, -1
	var noteRest, finalRest string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if noteAt < 0 {
			if rest, ok := cutMarker(trimmed, noteMarker); ok {
				noteAt, noteRest = i, rest
			}
			continue
		}
		if rest, ok := cutMarker(trimmed, finalMarker); ok {
			finalAt, finalRest = i, rest
			break
		}
	}
	if noteAt < 0 || finalAt < 0 {
		return "", strings.TrimSpace(raw)
	}
	noteLines := append([]string{noteRest}, lines[noteAt+1:finalAt]...)
	finalLines := append([]string{finalRest}, lines[finalAt+1:]...)
	note = strings.TrimSpace(strings.Join(noteLines, "\n"))
	final = strings.TrimSpace(strings.Join(finalLines, "\n"))
	final = strings.TrimSpace(strings.ReplaceAll(final, "```", ""))
	if final == "" {
		return "", strings.TrimSpace(raw)
	}
	return note, final
}

// cutMarker matches an ASCII marker at the start of line, ignoring case, and
// returns the remainder of the line.
func cutMarker(line, marker string) (string, bool) {
	if len(line) < len(marker) || !strings.EqualFold(line[:len(marker)], marker) {
		return "", false
	}
	return line[len(marker):], true
}
