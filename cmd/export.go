package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/proposal-cli/internal/export"
)

var (
	exportPDFPath string
	exportEmail   bool
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a generated document",
	Long:  "Renders the stored document of a completed run as PDF or as a submission email.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if exportPDFPath == "" && !exportEmail {
			return eris.New("nothing to export: pass --pdf or --email")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		doc, err := st.GetDocument(ctx, run.ID)
		if err != nil {
			return eris.Wrapf(err, "no document for run %s (status: %s)", run.ID, run.Status)
		}

		if exportPDFPath != "" {
			data, err := export.RenderPDF(doc)
			if err != nil {
				return eris.Wrap(err, "render pdf")
			}
			if err := os.WriteFile(exportPDFPath, data, 0o644); err != nil {
				return eris.Wrap(err, "write pdf")
			}
			fmt.Fprintf(os.Stderr, "PDF written to %s\n", exportPDFPath)
		}

		if exportEmail {
			email, err := export.BuildEmail(doc, run.Entity)
			if err != nil {
				return eris.Wrap(err, "build email")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"subject":    email.Subject,
				"body":       email.Body,
				"recipients": email.Recipients,
				"mailto":     email.MailtoLink(),
			})
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPDFPath, "pdf", "", "write the document as PDF to this path")
	exportCmd.Flags().BoolVar(&exportEmail, "email", false, "print the submission email as JSON")
	rootCmd.AddCommand(exportCmd)
}
