package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"shuttle/internal/align"
	"shuttle/internal/checkpoint"
	"shuttle/internal/config"
	"shuttle/internal/document"
	"shuttle/internal/orchestrator"
	"shuttle/internal/services"
	"shuttle/internal/services/llm"
	"shuttle/internal/services/oracle"
	"shuttle/internal/taskstore"
	"shuttle/internal/textutil"
	"shuttle/internal/translate"
)

func llmDefaults(cfg *config.Config) llm.Config {
	return llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}
}

func buildTranslator(cfg *config.Config, pool *llm.Pool, logger *slog.Logger) (*translate.Translator, error) {
	specs := make([]translate.Spec, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		specs = append(specs, translate.Spec{
			Ref: translate.ModelRef{
				Model:   model.Model,
				BaseURL: model.BaseURL,
				APIKey:  model.APIKey,
				Name:    model.Name,
			},
		})
	}
	opts := translate.Options{
		Models: specs,
		Integration: translate.ModelRef{
			Model:   cfg.Integration.Model,
			BaseURL: cfg.Integration.BaseURL,
			APIKey:  cfg.Integration.APIKey,
		},
		TranslationPrompt: cfg.Prompts.Translation,
		IntegrationPrompt: cfg.Prompts.Integration,
		ReviewPrompt:      cfg.Prompts.Review,
	}
	return translate.New(pool, llmDefaults(cfg), opts, logger)
}

func buildWindowAligner(cfg *config.Config, pool *llm.Pool, logger *slog.Logger) *align.WindowAligner {
	model, baseURL, apiKey := cfg.OracleEndpoint()
	client := pool.Get(llm.Config{
		APIKey:         apiKey,
		BaseURL:        baseURL,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	judge := oracle.NewClient(client, model, logger)
	return align.NewWindowAligner(judge, align.WindowOptions{
		SourceWindow:     cfg.Oracle.SourceWindow,
		BaseTargetWindow: cfg.Oracle.TargetWindow,
		Overlap:          cfg.Oracle.Overlap,
		MaxTargetWindow:  cfg.Oracle.MaxTargetWindow,
		MaxRetries:       cfg.Oracle.MaxRetries,
	}, logger)
}

// loadFilteredPages reads page text and strips configured boilerplate plus
// lines repeated across pages before anything downstream sees the text.
func loadFilteredPages(cfg *config.Config, path string, pageStart, pageEnd int) ([]document.PageText, error) {
	pages, err := document.LoadPages(path)
	if err != nil {
		return nil, err
	}
	pages = document.FilterPageRange(pages, pageStart, pageEnd)

	filter, err := textutil.NewLineFilter(cfg.Filter.Patterns)
	if err != nil {
		return nil, err
	}
	if cfg.Filter.DetectRepeated {
		texts := make([]string, len(pages))
		for i, page := range pages {
			texts[i] = page.Text
		}
		filter.DetectRepeated(texts)
	}
	filtered := make([]document.PageText, 0, len(pages))
	for _, page := range pages {
		page.Text = filter.Apply(page.Text)
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		filtered = append(filtered, page)
	}
	return filtered, nil
}

// outputBase derives the default output location for a source file.
func outputBase(cfg *config.Config, sourcePath string) string {
	name := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(cfg.Paths.WorkDir, "output", textutil.SanitizeToken(name))
}

func defaultCheckpointPath(cfg *config.Config, sourcePath string, kind taskstore.Kind) string {
	name := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	file := fmt.Sprintf("%s.%s.json", textutil.SanitizeToken(name), kind)
	return filepath.Join(cfg.Paths.WorkDir, "checkpoints", file)
}

// runUnits drives the orchestrator for one command invocation: it takes the
// run lock for the checkpoint, registers a task, reports progress into the
// task store, and translates interruption into a resumable exit.
func runUnits(
	cc *commandContext,
	out io.Writer,
	kind taskstore.Kind,
	sourcePath, checkpointPath, outPath string,
	units []document.WorkUnit,
	process orchestrator.ProcessFunc,
	retryFailed bool,
) (*checkpoint.Checkpoint, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cc.ensureLogger()
	if err != nil {
		return nil, err
	}

	lock := flock.New(checkpointPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another shuttle run is already using checkpoint %s", checkpointPath)
	}
	defer func() { _ = lock.Unlock() }()

	store := checkpoint.NewStore(checkpointPath)
	if retryFailed {
		cp, err := store.Load()
		if err != nil {
			return nil, err
		}
		if dropped := cp.DropFailed(); dropped > 0 {
			if err := store.Save(cp); err != nil {
				return nil, err
			}
			fmt.Fprintf(out, "Cleared %d failed units for retry\n", dropped)
		}
	}

	tasks, err := cc.openTaskStore()
	if err != nil {
		return nil, err
	}
	defer tasks.Close()

	ctx, stop := signalContext()
	defer stop()

	task, err := tasks.Create(ctx, kind, sourcePath, checkpointPath, outPath)
	if err != nil {
		return nil, err
	}
	if err := tasks.SetStatus(ctx, task.ID, taskstore.StatusRunning, ""); err != nil {
		return nil, err
	}
	if err := tasks.SetProgress(ctx, task.ID, 0, len(units)); err != nil {
		return nil, err
	}

	orch := orchestrator.New(store, orchestrator.Options{
		Workers:     cfg.Pipeline.Workers,
		Attempts:    cfg.Pipeline.Attempts,
		BackoffBase: time.Duration(cfg.Pipeline.BackoffSeconds) * time.Second,
		OnProgress: func(completed, total int) {
			_ = tasks.SetProgress(context.Background(), task.ID, completed, total)
		},
	}, logger)

	cp, runErr := orch.Run(ctx, units, process)
	// Status updates after a cancelled run still need a live context.
	background := context.Background()
	switch {
	case runErr == nil:
		if err := tasks.SetStatus(background, task.ID, taskstore.StatusCompleted, ""); err != nil {
			return nil, err
		}
	case errors.Is(runErr, context.Canceled):
		_ = tasks.SetStatus(background, task.ID, taskstore.StatusFailed, "interrupted")
		fmt.Fprintf(out, "Interrupted. Progress saved to %s; re-run the same command to resume.\n", checkpointPath)
		return cp, runErr
	default:
		_ = tasks.SetStatus(background, task.ID, taskstore.StatusFailed, runErr.Error())
		if services.Fatal(runErr) {
			fmt.Fprintf(out, "Checkpoint %s could not be written; fix the location before re-running.\n", checkpointPath)
		}
		return cp, runErr
	}
	return cp, nil
}
