package translate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/services/llm"
	"shuttle/internal/translate"
)

// modelServer routes chat completions by model id and records the prompts
// each model received.
type modelServer struct {
	*httptest.Server

	mu      sync.Mutex
	replies map[string]string
	failing map[string]bool
	seen    map[string][]string
}

func newModelServer(t *testing.T, replies map[string]string) *modelServer {
	t.Helper()
	ms := &modelServer{
		replies: replies,
		failing: make(map[string]bool),
		seen:    make(map[string][]string),
	}
	ms.Server = httptest.NewServer(http.HandlerFunc(ms.handle))
	t.Cleanup(ms.Server.Close)
	return ms
}

func (ms *modelServer) handle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := payload.Messages[len(payload.Messages)-1].Content

	ms.mu.Lock()
	ms.seen[payload.Model] = append(ms.seen[payload.Model], user)
	fail := ms.failing[payload.Model]
	reply := ms.replies[payload.Model]
	ms.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": reply}},
		},
	})
}

func (ms *modelServer) failModel(model string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failing[model] = true
}

func (ms *modelServer) prompts(model string) []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.seen[model]...)
}

func newTranslator(t *testing.T, server *modelServer, opts translate.Options) *translate.Translator {
	t.Helper()
	pool := llm.NewPool(
		llm.WithRetryMaxAttempts(1),
		llm.WithSleeper(func(time.Duration) {}),
	)
	defaults := llm.Config{APIKey: "test-key", BaseURL: server.URL}
	tr, err := translate.New(pool, defaults, opts, logging.NewNop())
	if err != nil {
		t.Fatalf("translate.New failed: %v", err)
	}
	return tr
}

func twoModelOptions() translate.Options {
	return translate.Options{
		Models: []translate.Spec{
			{Ref: translate.ModelRef{Model: "test/alpha", Name: "alpha"}},
			{Ref: translate.ModelRef{Model: "test/beta", Name: "beta"}},
		},
		Integration: translate.ModelRef{Model: "test/judge", Name: "judge"},
	}
}

func TestTranslateFansOutAndIntegrates(t *testing.T) {
	server := newModelServer(t, map[string]string{
		"test/alpha": "alpha rendering",
		"test/beta":  "beta rendering",
		"test/judge": "[analysis]\nalpha is more faithful\n[translation]\nmerged rendering",
	})
	tr := newTranslator(t, server, twoModelOptions())

	outcome, err := tr.Translate(context.Background(), "source paragraph")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if outcome.Final != "merged rendering" {
		t.Fatalf("unexpected final %q", outcome.Final)
	}
	if outcome.Note != "alpha is more faithful" {
		t.Fatalf("unexpected note %q", outcome.Note)
	}
	if outcome.Outputs["1_alpha"] != "alpha rendering" || outcome.Outputs["2_beta"] != "beta rendering" {
		t.Fatalf("candidate outputs not keyed by slot and name: %v", outcome.Outputs)
	}

	judgePrompts := server.prompts("test/judge")
	if len(judgePrompts) != 1 {
		t.Fatalf("expected 1 integration call, got %d", len(judgePrompts))
	}
	content := judgePrompts[0]
	if !strings.Contains(content, "source paragraph") {
		t.Fatalf("integration content misses the source: %q", content)
	}
	if !strings.Contains(content, "### Translator 1 (alpha)") || !strings.Contains(content, "### Translator 2 (beta)") {
		t.Fatalf("integration content misses labeled candidates: %q", content)
	}
}

func TestTranslateToleratesSingleModelFailure(t *testing.T) {
	server := newModelServer(t, map[string]string{
		"test/alpha": "alpha rendering",
		"test/judge": "[analysis]\nonly alpha survived\n[translation]\nmerged rendering",
	})
	server.failModel("test/beta")
	tr := newTranslator(t, server, twoModelOptions())

	outcome, err := tr.Translate(context.Background(), "source paragraph")
	if err != nil {
		t.Fatalf("one failing model must not abort: %v", err)
	}
	if !strings.HasPrefix(outcome.Outputs["2_beta"], "[translation by beta failed") {
		t.Fatalf("failed slot should carry a marker, got %q", outcome.Outputs["2_beta"])
	}
	if outcome.Final != "merged rendering" {
		t.Fatalf("unexpected final %q", outcome.Final)
	}
}

func TestTranslateFailsWhenEveryModelFails(t *testing.T) {
	server := newModelServer(t, map[string]string{})
	server.failModel("test/alpha")
	server.failModel("test/beta")
	tr := newTranslator(t, server, twoModelOptions())

	_, err := tr.Translate(context.Background(), "source paragraph")
	if err == nil {
		t.Fatal("expected error when every model fails")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestReviewEditsExistingRendering(t *testing.T) {
	server := newModelServer(t, map[string]string{
		"test/alpha": "alpha rendering",
		"test/beta":  "beta rendering",
		"test/judge": "[review]\nthe rendering drops a clause\n[final]\nedited rendering",
	})
	tr := newTranslator(t, server, twoModelOptions())

	outcome, err := tr.Review(context.Background(), "source paragraph", "existing rendering", "low confidence match")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if outcome.Final != "edited rendering" || outcome.Note != "the rendering drops a clause" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	content := server.prompts("test/judge")[0]
	if !strings.Contains(content, "existing rendering") {
		t.Fatalf("review content misses the existing rendering: %q", content)
	}
	if !strings.Contains(content, "low confidence match") {
		t.Fatalf("review content misses the alignment note: %q", content)
	}
}

func TestIntegrationWithoutMarkersUsesWholeReply(t *testing.T) {
	server := newModelServer(t, map[string]string{
		"test/alpha": "alpha rendering",
		"test/beta":  "beta rendering",
		"test/judge": "a bare rendering with no sections",
	})
	tr := newTranslator(t, server, twoModelOptions())

	outcome, err := tr.Translate(context.Background(), "source paragraph")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if outcome.Note != "" || outcome.Final != "a bare rendering with no sections" {
		t.Fatalf("unmarked reply should pass through whole: %#v", outcome)
	}
}

func TestIntegrationDefaultsToFirstModel(t *testing.T) {
	server := newModelServer(t, map[string]string{
		"test/alpha": "alpha rendering",
	})
	opts := translate.Options{
		Models: []translate.Spec{{Ref: translate.ModelRef{Model: "test/alpha", Name: "alpha"}}},
	}
	tr := newTranslator(t, server, opts)

	outcome, err := tr.Translate(context.Background(), "source paragraph")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if outcome.Final != "alpha rendering" {
		t.Fatalf("unexpected final %q", outcome.Final)
	}

	prompts := server.prompts("test/alpha")
	if len(prompts) != 2 {
		t.Fatalf("expected translation plus integration calls on the first model, got %d", len(prompts))
	}
}

func TestNewRequiresAtLeastOneModel(t *testing.T) {
	pool := llm.NewPool()
	_, err := translate.New(pool, llm.Config{APIKey: "k"}, translate.Options{}, logging.NewNop())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
