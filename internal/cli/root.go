// Package cli is the lexiguard command tree. Every command builds the same
// application the gateway runs, so a CLI configured with the gateway's
// store sees the same history.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericksa/lexiguard/internal/app"
	"github.com/ericksa/lexiguard/internal/config"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Timeout      time.Duration
}

// CLIContext carries the wired application through the command tree.
type CLIContext struct {
	App          *app.App
	OutputFormat string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	var cancel context.CancelFunc

	cmd := &cobra.Command{
		Use:     "lexiguard",
		Short:   "LexiGuard contract risk analysis",
		Long:    "LexiGuard splits contracts into clauses, scores each clause for legal risk\nand keeps a history of every analyzed document.",
		Version: app.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, c := context.WithTimeout(cmd.Context(), opts.Timeout)
			cancel = c
			cmd.SetContext(ctx)
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cancel != nil {
				defer cancel()
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return nil
			}
			return cliCtx.App.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "global operation timeout")

	cmd.AddCommand(
		newAnalyzeCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newReportCmd(),
		newAuditCmd(),
		newKeywordsCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format: %s", opts.OutputFormat)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	// stdout carries command output
	cfg.Log.Level = opts.LogLevel
	cfg.Log.Format = "console"
	cfg.Log.OutputPaths = []string{"stderr"}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	cliCtx := &CLIContext{App: a, OutputFormat: opts.OutputFormat}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute runs the command tree with args and prints any error to stderr.
func Execute(args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		PrintError(cmd, err)
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printTable writes tab-aligned rows under headers.
func printTable(cmd *cobra.Command, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// PrintError writes err to stderr, preferring the user-facing message of an
// AppError.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", apperrors.Message(err))
}
