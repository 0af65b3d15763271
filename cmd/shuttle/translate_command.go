package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/assemble"
	"shuttle/internal/document"
	"shuttle/internal/orchestrator"
	"shuttle/internal/segment"
	"shuttle/internal/services/llm"
	"shuttle/internal/taskstore"
	"shuttle/internal/translate"
)

func newTranslateCommand(cc *commandContext) *cobra.Command {
	var (
		checkpointPath string
		outputPath     string
		pageStart      int
		pageEnd        int
		retryFailed    bool
	)

	cmd := &cobra.Command{
		Use:   "translate <pages.json>",
		Short: "Translate extracted page text with multi-model integration",
		Long: `Translate reads extracted page text (a JSON array of {page, text}
objects), segments it, renders every segment through each configured model,
and merges the candidates with the integration model. Progress is
checkpointed after every segment; re-running the same command resumes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cc.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sourcePath := args[0]

			pages, err := loadFilteredPages(cfg, sourcePath, pageStart, pageEnd)
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				return fmt.Errorf("no page text remains after filtering %s", sourcePath)
			}
			segments := segment.Split(pages, cfg.Segmenter.MaxChars)
			units := document.UnitsFromSegments(segments)
			fmt.Fprintf(out, "Translating %d segments across %d pages\n", len(units), len(pages))

			pool := llm.NewPool()
			translator, err := buildTranslator(cfg, pool, logger)
			if err != nil {
				return err
			}

			if checkpointPath == "" {
				checkpointPath = defaultCheckpointPath(cfg, sourcePath, taskstore.KindTranslate)
			}
			if outputPath == "" {
				outputPath = outputBase(cfg, sourcePath)
			}

			process := func(ctx context.Context, unit document.WorkUnit) (orchestrator.Result, error) {
				outcome, err := translator.Translate(ctx, unit.Original)
				if err != nil {
					return orchestrator.Result{}, err
				}
				return resultFromOutcome(outcome), nil
			}

			cp, err := runUnits(cc, out, taskstore.KindTranslate, sourcePath, checkpointPath, outputPath, units, process, retryFailed)
			if err != nil {
				return err
			}

			rows := assemble.Rows(units, cp)
			docPath := outputPath + ".txt"
			comparePath := outputPath + ".compare.txt"
			jsonPath := outputPath + ".json"
			if err := assemble.WriteDocument(docPath, rows); err != nil {
				return err
			}
			if err := assemble.WriteComparison(comparePath, rows); err != nil {
				return err
			}
			if err := assemble.WriteJSON(jsonPath, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Translation written to %s\n", docPath)
			fmt.Fprintf(out, "Candidate comparison written to %s\n", comparePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file path (default derived from the source file)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path prefix (default under work_dir)")
	cmd.Flags().IntVar(&pageStart, "page-start", 0, "First page to translate (1-based, 0 means from the beginning)")
	cmd.Flags().IntVar(&pageEnd, "page-end", 0, "Last page to translate (0 means to the end)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Clear previously failed units from the checkpoint and retry them")
	return cmd
}

// resultFromOutcome maps a translation outcome onto the checkpoint contract.
// The integrator's analysis rides in the output map; the entry note is
// reserved for failure diagnostics.
func resultFromOutcome(outcome translate.Outcome) orchestrator.Result {
	outputs := outcome.Outputs
	if strings.TrimSpace(outcome.Note) != "" {
		if outputs == nil {
			outputs = make(map[string]string, 1)
		}
		outputs["analysis"] = outcome.Note
	}
	return orchestrator.Result{Outputs: outputs, Final: outcome.Final}
}
