package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/enrich"
	"github.com/sells-group/proposal-cli/internal/export"
	"github.com/sells-group/proposal-cli/internal/pipeline"
	anthropicpkg "github.com/sells-group/proposal-cli/pkg/anthropic"
)

var (
	generateRFQPath    string
	generateEntityPath string
	generatePDFPath    string
	generateNoEnrich   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a proposal for an RFQ",
	Long:  "Runs the full generation pipeline for one RFQ and company record, stores the versioned document, and prints the run result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		rfq, err := loadRFQFile(generateRFQPath)
		if err != nil {
			return err
		}
		entity, err := loadEntityFile(generateEntityPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)

		var enricher pipeline.Enricher
		if cfg.Enrich.Enabled && !generateNoEnrich {
			enricher = enrich.New(cfg, client, nil)
		}

		gen := pipeline.NewGenerator(cfg, st, client, enricher, newSessionLogger())

		run, err := gen.NewRun(ctx, rfq, entity)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		doc, err := gen.Execute(ctx, run, pipeline.NewProgressTracker())
		if err != nil {
			return eris.Wrap(err, "generate")
		}

		zap.L().Info("generation complete",
			zap.String("run_id", run.ID),
			zap.Int("version", doc.Metadata.Version),
			zap.Int("confidence", doc.ConfidenceScore),
			zap.Bool("submission_ready", doc.SubmissionReady),
		)

		if stored, err := st.GetRun(ctx, run.ID); err == nil && stored.Result != nil && stored.Result.Report != "" {
			fmt.Fprintln(os.Stderr, stored.Result.Report)
		}

		if generatePDFPath != "" {
			data, err := export.RenderPDF(doc)
			if err != nil {
				return eris.Wrap(err, "render pdf")
			}
			if err := os.WriteFile(generatePDFPath, data, 0o644); err != nil {
				return eris.Wrap(err, "write pdf")
			}
			fmt.Fprintf(os.Stderr, "PDF written to %s\n", generatePDFPath)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateRFQPath, "rfq", "", "path to RFQ record (JSON or YAML, required)")
	generateCmd.Flags().StringVar(&generateEntityPath, "entity", "", "path to company record (JSON or YAML, required)")
	generateCmd.Flags().StringVar(&generatePDFPath, "pdf", "", "also render the document to this PDF path")
	generateCmd.Flags().BoolVar(&generateNoEnrich, "no-enrich", false, "skip attachment enrichment")
	_ = generateCmd.MarkFlagRequired("rfq")
	_ = generateCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(generateCmd)
}
