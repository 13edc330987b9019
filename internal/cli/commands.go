package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/report"
	"github.com/ericksa/lexiguard/internal/store"
)

const cliUser = "cli"

func newAnalyzeCmd() *cobra.Command {
	var text, name string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a contract document or text",
		Long:  "Analyze a pdf, docx, html or txt contract. Use --text to analyze text directly, or \"-\" to read text from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc := cliCtx.App.Service

			var out *pipeline.Outcome
			switch {
			case text != "":
				out, err = svc.AnalyzeText(cmd.Context(), pipeline.TextSubmission{Text: text, Filename: name, Source: "cli", User: cliUser})
			case len(args) == 1 && args[0] == "-":
				var data []byte
				data, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				out, err = svc.AnalyzeText(cmd.Context(), pipeline.TextSubmission{Text: string(data), Filename: name, Source: "cli", User: cliUser})
			case len(args) == 1:
				var data []byte
				data, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				filename := name
				if filename == "" {
					filename = filepath.Base(args[0])
				}
				out, err = svc.AnalyzeDocument(cmd.Context(), pipeline.DocumentSubmission{Filename: filename, Content: data, Source: "cli", User: cliUser})
			default:
				return fmt.Errorf("a file, \"-\" or --text is required")
			}
			if err != nil {
				return err
			}

			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, out)
			}
			return printOutcome(cmd, out)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "contract text to analyze")
	cmd.Flags().StringVar(&name, "name", "", "filename to store with the analysis")
	return cmd
}

func printOutcome(cmd *cobra.Command, out *pipeline.Outcome) error {
	w := cmd.OutOrStdout()
	rec := out.Record
	if out.Duplicate {
		fmt.Fprintf(w, "Duplicate of %s, analyzed %s\n", rec.ID, rec.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "ID: %s\nFile: %s\nRisk score: %d\nSummary: %s\n", rec.ID, rec.Filename, rec.RiskScore, rec.Summary)
	if len(rec.Risks) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	rows := make([][]string, 0, len(rec.Risks))
	for _, r := range rec.Risks {
		rows = append(rows, []string{string(r.Level), strconv.FormatFloat(r.Score, 'f', 2, 64), analysis.Snippet(r.Clause, 60)})
	}
	return printTable(cmd, []string{"LEVEL", "SCORE", "CLAUSE"}, rows)
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List analyzed contracts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			records, err := cliCtx.App.Service.History(cmd.Context())
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, records)
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.ID, r.Filename, r.Timestamp.Format(time.RFC3339), strconv.Itoa(r.RiskScore)})
			}
			return printTable(cmd, []string{"ID", "FILENAME", "TIMESTAMP", "RISK"}, rows)
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rec, err := cliCtx.App.Service.Contract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, rec)
			}
			return printOutcome(cmd, &pipeline.Outcome{Record: rec})
		},
	}
}

func newReportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Render the text report of a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rec, err := cliCtx.App.Service.Contract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				return report.Render(cmd.OutOrStdout(), rec)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := report.Render(f, rec); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to this file instead of stdout")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			events, err := cliCtx.App.Service.AuditLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, events)
			}
			return printTable(cmd, []string{"TIMESTAMP", "USER", "ACTION", "DETAILS"}, auditRows(events))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events (0 for all)")
	return cmd
}

func auditRows(events []*store.AuditEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{ev.Timestamp.Format(time.RFC3339), ev.User, ev.Action, ev.Details})
	}
	return rows
}

func newKeywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Show the risk keyword table in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			sets := cliCtx.App.Service.Keywords()
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, sets)
			}
			rows := make([][]string, 0, len(sets))
			for _, s := range sets {
				rows = append(rows, []string{string(s.Level), strings.Join(s.Keywords, ", ")})
			}
			return printTable(cmd, []string{"LEVEL", "KEYWORDS"}, rows)
		},
	}
}
