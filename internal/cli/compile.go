package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cohort/internal/config"
	"github.com/roach88/cohort/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	requestFlags
	Output string // output file path
	Jobs   int
}

// CompiledRequest is the result for one request file.
type CompiledRequest struct {
	Path        string `json:"path"`
	SQL         string `json:"sql"`
	Args        []any  `json:"args,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Context     string `json:"context,omitempty"`
	Dialect     string `json:"dialect"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <request.json|yaml>...",
		Short: "Compile request files to SQL",
		Long: `Compile one or more request files to SQL statements.

Files are compiled concurrently and printed in argument order. Every file
must compile; the first failure is reported and nothing is written.

Examples:
  cohort compile cohort.json
  cohort compile a.yaml b.yaml --dialect postgres --params
  cohort compile diag.json --context ed -o diag.sql`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL to this file")
	cmd.Flags().BoolVar(&opts.Params, "params", false, "emit placeholders and print the values separately")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres, default from config)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "diagnosis context (hospital|ed), overrides the request")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 4, "files compiled at once")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	graph, err := opts.loadGraph()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, err)
	}
	dialect, err := resolveDialect(opts.requestFlags, cfg)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}

	results, err := compileFiles(ctx, querysql.NewCompiler(graph), paths, opts, cfg, dialect, logger)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(code, err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(renderSQL(results, false)), 0o644); err != nil {
			return formatter.Fail(ErrCodeWriteFailed, fmt.Errorf("writing output file: %w", err))
		}
		formatter.VerboseLog("Wrote %d statement(s) to %s", len(results), opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote %d statement(s) to %s\n", len(results), opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, renderSQL(results, true))
	return nil
}

// compileFiles compiles every path concurrently. Results keep the order of
// paths.
func compileFiles(ctx context.Context, c *querysql.Compiler, paths []string, opts *CompileOptions,
	cfg config.Config, dialect querysql.Dialect, logger *slog.Logger) ([]CompiledRequest, error) {
	results := make([]CompiledRequest, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for i, path := range paths {
		g.Go(func() error {
			start := time.Now()
			req, err := loadRequest(path, opts.requestFlags, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			res, err := c.CompileRequest(req, opts.mode(), dialect)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fp, err := req.Fingerprint()
			if err != nil {
				return fmt.Errorf("%s: fingerprint: %w", path, err)
			}
			logger.Debug("compiled request",
				"path", path,
				"fingerprint", fp,
				"tables", len(req.Query.Tables()),
				"duration", time.Since(start))

			results[i] = CompiledRequest{
				Path:        path,
				SQL:         res.SQL,
				Args:        res.Args,
				Fingerprint: fp,
				Context:     string(req.Context),
				Dialect:     dialect.Name,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// renderSQL joins statements with a header comment per file. Parameter
// values are shown as a comment when withArgs is set.
func renderSQL(results []CompiledRequest, withArgs bool) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "-- %s (fingerprint %s)\n", r.Path, r.Fingerprint)
		b.WriteString(r.SQL)
		b.WriteString(";\n")
		if withArgs && len(r.Args) > 0 {
			fmt.Fprintf(&b, "-- args: %v\n", r.Args)
		}
	}
	return b.String()
}
