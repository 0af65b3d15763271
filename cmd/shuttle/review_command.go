package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/align"
	"shuttle/internal/assemble"
	"shuttle/internal/document"
	"shuttle/internal/orchestrator"
	"shuttle/internal/services/llm"
	"shuttle/internal/taskstore"
)

func newReviewCommand(cc *commandContext) *cobra.Command {
	var (
		checkpointPath string
		outputPath     string
		pageStart      int
		pageEnd        int
		retryFailed    bool
		useRule        bool
	)

	cmd := &cobra.Command{
		Use:   "review <pages.json> <targets.json>",
		Short: "Review an existing translation against its source",
		Long: `Review aligns source paragraphs with an existing translation, then
re-renders each paragraph: aligned paragraphs are edited against their
current rendering, unmatched ones are translated fresh. Alignment normally
uses the judgment model; --rule switches to the offline heuristic aligner.`,
		Args: cobra.ExactArgs(2),
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
			sourcePath, targetPath := args[0], args[1]

			pages, err := loadFilteredPages(cfg, sourcePath, pageStart, pageEnd)
			if err != nil {
				return err
			}
			sources := document.ParagraphsFromPages(pages)
			targets, err := document.LoadTargets(targetPath)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no source paragraphs remain after filtering %s", sourcePath)
			}

			pool := llm.NewPool()
			var records []document.AlignmentRecord
			if useRule {
				records = align.Rule(sources, targets, cfg.Aligner.Threshold)
			} else {
				aligner := buildWindowAligner(cfg, pool, logger)
				ctx, stop := signalContext()
				records, err = aligner.Align(ctx, sources, targets)
				stop()
				if err != nil {
					return err
				}
			}
			matched := 0
			for _, rec := range records {
				if rec.Matched() {
					matched++
				}
			}
			fmt.Fprintf(out, "Aligned %d of %d paragraphs; reviewing all of them\n", matched, len(records))

			translator, err := buildTranslator(cfg, pool, logger)
			if err != nil {
				return err
			}
			units := document.UnitsFromRecords(records)

			if checkpointPath == "" {
				checkpointPath = defaultCheckpointPath(cfg, sourcePath, taskstore.KindReview)
			}
			if outputPath == "" {
				outputPath = outputBase(cfg, sourcePath) + ".review"
			}

			process := func(ctx context.Context, unit document.WorkUnit) (orchestrator.Result, error) {
				if unit.Reference == "" {
					outcome, err := translator.Translate(ctx, unit.Original)
					if err != nil {
						return orchestrator.Result{}, err
					}
					return resultFromOutcome(outcome), nil
				}
				outcome, err := translator.Review(ctx, unit.Original, unit.Reference, unit.Note)
				if err != nil {
					return orchestrator.Result{}, err
				}
				return resultFromOutcome(outcome), nil
			}

			cp, err := runUnits(cc, out, taskstore.KindReview, sourcePath, checkpointPath, outputPath, units, process, retryFailed)
			if err != nil {
				return err
			}

			rows := assemble.Rows(units, cp)
			docPath := outputPath + ".txt"
			comparePath := outputPath + ".compare.txt"
			if err := assemble.WriteDocument(docPath, rows); err != nil {
				return err
			}
			if err := assemble.WriteComparison(comparePath, rows); err != nil {
				return err
			}
			if err := assemble.WriteJSON(outputPath+".json", rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Reviewed translation written to %s\n", docPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file path (default derived from the source file)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path prefix (default under work_dir)")
	cmd.Flags().IntVar(&pageStart, "page-start", 0, "First page to review (1-based, 0 means from the beginning)")
	cmd.Flags().IntVar(&pageEnd, "page-end", 0, "Last page to review (0 means to the end)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Clear previously failed units from the checkpoint and retry them")
	cmd.Flags().BoolVar(&useRule, "rule", false, "Align with the offline heuristic instead of the judgment model")
	return cmd
}
