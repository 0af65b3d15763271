package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shuttle/internal/align"
	"shuttle/internal/document"
	"shuttle/internal/services/llm"
)

func newAlignCommand(cc *commandContext) *cobra.Command {
	var (
		outputPath string
		pageStart  int
		pageEnd    int
		useRule    bool
	)

	cmd := &cobra.Command{
		Use:   "align <pages.json> <targets.json>",
		Short: "Align source paragraphs with an existing translation",
		Long: `Align maps each source paragraph to the target paragraphs that render
it and writes the alignment records as JSON. The judgment model drives
alignment by default; --rule uses the offline heuristic instead.`,
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

			var records []document.AlignmentRecord
			if useRule {
				records = align.Rule(sources, targets, cfg.Aligner.Threshold)
			} else {
				aligner := buildWindowAligner(cfg, llm.NewPool(), logger)
				ctx, stop := signalContext()
				defer stop()
				records, err = aligner.Align(ctx, sources, targets)
				if err != nil {
					return err
				}
			}

			var matched, skipped, missing int
			for _, rec := range records {
				switch rec.Status {
				case document.StatusMatched:
					matched++
				case document.StatusSkip:
					skipped++
				case document.StatusMissing:
					missing++
				}
			}
			fmt.Fprintf(out, "Alignment: %d matched, %d skipped, %d missing of %d paragraphs\n",
				matched, skipped, missing, len(records))

			if outputPath == "" {
				outputPath = outputBase(cfg, sourcePath) + ".alignment.json"
			}
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("encode alignment records: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return fmt.Errorf("write alignment records: %w", err)
			}
			fmt.Fprintf(out, "Alignment records written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Alignment records output path")
	cmd.Flags().IntVar(&pageStart, "page-start", 0, "First page to align (1-based, 0 means from the beginning)")
	cmd.Flags().IntVar(&pageEnd, "page-end", 0, "Last page to align (0 means to the end)")
	cmd.Flags().BoolVar(&useRule, "rule", false, "Align with the offline heuristic instead of the judgment model")
	return cmd
}
