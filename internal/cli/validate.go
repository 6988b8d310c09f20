package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/querysql"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	requestFlags
	Strict bool
}

// ValidationReport is the validate command's payload.
type ValidationReport struct {
	Path        string   `json:"path"`
	Fingerprint string   `json:"fingerprint"`
	Tables      []string `json:"tables"`
	Warnings    []string `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <request.json|yaml>",
		Short: "Check a request without printing SQL",
		Long: `Decode and compile a request, then list warnings about the tree:
empty or single-child nodes, empty ranges, non-positive readmission
intervals and context-dependent tables used without a context.
Warnings are also listed when the request does not compile.

Exit codes:
  0 - Request compiles (warnings allowed unless --strict)
  1 - Request rejected, or warnings with --strict
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as failures")
	cmd.Flags().StringVar(&opts.Context, "context", "", "diagnosis context (hospital|ed), overrides the request")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	graph, err := opts.loadGraph()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}

	req, err := loadRequest(path, opts.requestFlags, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ErrCodeNotFound, err)
		}
		return formatter.Fail(ErrCodeGeneric, err)
	}
	vr := queryir.Validate(req, graph)
	if _, err := querysql.NewCompiler(graph).CompileRequest(req, querysql.ModeLiteral, querysql.SQLite); err != nil {
		if len(vr.Warnings) == 0 {
			return formatter.Fail(ErrCodeGeneric, err)
		}
		if formatter.Format != "json" {
			printWarnings(formatter, vr.Warnings)
		}
		return formatter.FailWith(ErrCodeGeneric, err, map[string]any{"warnings": vr.Warnings})
	}
	fp, err := req.Fingerprint()
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}

	report := ValidationReport{
		Path:        path,
		Fingerprint: fp,
		Tables:      req.Query.Tables(),
		Warnings:    vr.Warnings,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✓ %s compiles (%d table(s) filtered)\n", path, len(report.Tables))
		printWarnings(formatter, vr.Warnings)
	}

	if opts.Strict && !vr.Clean {
		return NewExitError(ExitFailure, fmt.Sprintf("%d warning(s)", len(vr.Warnings)))
	}
	return nil
}

func printWarnings(formatter *OutputFormatter, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w)
	}
}
