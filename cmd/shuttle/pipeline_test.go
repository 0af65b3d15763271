package main

import (
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/services/llm"
	"shuttle/internal/taskstore"
	"shuttle/internal/testsupport"
	"shuttle/internal/translate"
)

func TestDerivedPathsUseSanitizedSourceName(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	base := outputBase(cfg, "/books/My Book (2024).json")
	if filepath.Dir(base) != filepath.Join(cfg.Paths.WorkDir, "output") {
		t.Fatalf("output base in wrong directory: %q", base)
	}
	if got := filepath.Base(base); got != "my_book__2024" {
		t.Fatalf("source name not sanitized: %q", got)
	}

	cp := defaultCheckpointPath(cfg, "/books/My Book (2024).json", taskstore.KindTranslate)
	if filepath.Dir(cp) != filepath.Join(cfg.Paths.WorkDir, "checkpoints") {
		t.Fatalf("checkpoint in wrong directory: %q", cp)
	}
	if got := filepath.Base(cp); got != "my_book__2024.translate.json" {
		t.Fatalf("checkpoint name should carry the task kind: %q", got)
	}
}

func TestBuildTranslatorFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModels(
		config.Model{Name: "alpha", Model: "test/alpha"},
		config.Model{Name: "beta", Model: "test/beta"},
	))
	pool := llm.NewPool()

	if _, err := buildTranslator(cfg, pool, logging.NewNop()); err != nil {
		t.Fatalf("buildTranslator failed: %v", err)
	}
	if pool.Size() == 0 {
		t.Fatal("translator should register clients in the pool")
	}

	empty := testsupport.NewConfig(t, testsupport.WithModels())
	if _, err := buildTranslator(empty, llm.NewPool(), logging.NewNop()); err == nil {
		t.Fatal("expected error without translation models")
	}
}

func TestLoadFilteredPagesAppliesFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Filter.Patterns = []string{`^uploaded by .*$`}
	cfg.Filter.DetectRepeated = true

	path := filepath.Join(t.TempDir(), "pages.json")
	testsupport.WriteJSON(t, path, []map[string]any{
		{"page": 1, "text": "STAMP\nuploaded by someone\nchapter one"},
		{"page": 2, "text": "STAMP\nthe plot thickens"},
		{"page": 3, "text": "STAMP\nand resolves"},
		{"page": 4, "text": "uploaded by someone"},
	})

	pages, err := loadFilteredPages(cfg, path, 0, 0)
	if err != nil {
		t.Fatalf("loadFilteredPages failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("fully filtered pages should be dropped, got %d pages", len(pages))
	}
	for _, page := range pages {
		if strings.Contains(page.Text, "STAMP") || strings.Contains(page.Text, "uploaded by") {
			t.Fatalf("boilerplate survived on page %d: %q", page.Page, page.Text)
		}
	}
	if pages[0].Text != "chapter one" {
		t.Fatalf("unexpected first page text %q", pages[0].Text)
	}
}

func TestResultFromOutcomeMapsAnalysisIntoOutputs(t *testing.T) {
	outcome := translate.Outcome{
		Outputs: map[string]string{"1_alpha": "draft"},
		Final:   "rendering",
		Note:    "alpha kept the idiom",
	}
	result := resultFromOutcome(outcome)
	if result.Final != "rendering" {
		t.Fatalf("unexpected final %q", result.Final)
	}
	if result.Note != "" {
		t.Fatal("entry note is reserved for failure diagnostics")
	}
	if result.Outputs["analysis"] != "alpha kept the idiom" {
		t.Fatalf("analysis not mapped into outputs: %v", result.Outputs)
	}

	bare := resultFromOutcome(translate.Outcome{Final: "rendering"})
	if bare.Outputs != nil {
		t.Fatalf("no outputs expected, got %v", bare.Outputs)
	}
}
