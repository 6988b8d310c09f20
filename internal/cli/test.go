package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/harness"
	"github.com/roach88/cohort/internal/querysql"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario name glob
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []*harness.Result `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run compile scenarios",
		Long: `Run the YAML compile scenarios in a directory.

Each scenario compiles an inline request and checks the statement, the
error code, or the rows it returns against fixture tables. Golden files
live in golden/ next to the scenarios.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  cohort test ./scenarios
  cohort test ./scenarios --filter "readmission*"
  cohort test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	if _, err := os.Stat(dir); err != nil {
		return formatter.Fail(ErrCodeNotFound, fmt.Errorf("scenarios directory not found: %s", dir))
	}
	graph, err := opts.loadGraph()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}
	if opts.Filter != "" {
		kept := scenarios[:0]
		for _, sc := range scenarios {
			ok, err := filepath.Match(opts.Filter, sc.Name)
			if err != nil {
				return formatter.Fail(ErrCodeGeneric, fmt.Errorf("invalid filter pattern: %w", err))
			}
			if ok {
				kept = append(kept, sc)
			}
		}
		scenarios = kept
	}

	runner := harness.NewRunner(querysql.NewCompiler(graph), logger)
	results, err := runner.RunAll(cmd.Context(), scenarios)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}

	summary := TestResult{Scenarios: results, Total: len(results)}
	for _, r := range results {
		if r.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		outputTestText(formatter, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
	}
	return nil
}

func outputTestText(formatter *OutputFormatter, summary TestResult) {
	w := formatter.Writer
	if summary.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, r := range summary.Scenarios {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
