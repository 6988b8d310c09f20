package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/querysql"
	"github.com/roach88/cohort/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	requestFlags
	Output    string
	DBPath    string
	ChunkSize int
	NoHistory bool
}

// RunResult summarizes one executed request.
type RunResult struct {
	RunID       string `json:"run_id,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Rows        int64  `json:"rows"`
	OutputPath  string `json:"output_path"`
	Duration    string `json:"duration"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <request.json|yaml>",
		Short: "Compile a request, execute it and export the rows as CSV",
		Long: `Compile a request, execute it against the SQLite database and stream
the result to a CSV file chunk by chunk.

The statement is always parameterized. Unless history is disabled the run
is recorded in the database and listed by 'cohort history'. With history
disabled the database is opened read-only.

Examples:
  cohort run cohort.json
  cohort run cohort.yaml --db mimic.db -o cohort.csv --chunk-size 5000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "CSV file (default <output_path>/<fingerprint>.csv)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "database path (default from config)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "rows fetched per round trip (default from config)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "diagnosis context (hospital|ed), overrides the request")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run")

	return cmd
}

func runRun(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())
	start := time.Now()

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
	res, err := querysql.NewCompiler(graph).CompileRequest(req, querysql.ModeParameterized, querysql.SQLite)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}
	fp, err := req.Fingerprint()
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ErrCodeNotFound, fmt.Errorf("database not found: %w", err))
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = cfg.ChunkSize
	}
	outPath := opts.Output
	if outPath == "" {
		outPath = filepath.Join(cfg.OutputPath, fp[:16]+".csv")
	}

	record := cfg.History && !opts.NoHistory
	openStore := store.OpenReadOnly
	if record {
		openStore = store.Open
	}
	st, err := openStore(dbPath)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}
	defer st.Close()

	rows, err := export(ctx, st, res, outPath, chunk)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}
	logger.Info("exported cohort",
		"fingerprint", fp,
		"rows", rows,
		"output", outPath,
		"duration", time.Since(start))

	result := RunResult{
		Fingerprint: fp,
		Rows:        rows,
		OutputPath:  outPath,
		Duration:    time.Since(start).Round(time.Millisecond).String(),
	}

	if record {
		run, err := st.RecordRun(ctx, store.Run{
			Fingerprint: fp,
			Context:     string(req.Context),
			Dialect:     querysql.SQLite.Name,
			SQL:         res.SQL,
			RowCount:    rows,
			OutputPath:  outPath,
		})
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err)
		}
		result.RunID = run.ID
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported %d row(s) to %s in %s\n", result.Rows, result.OutputPath, result.Duration)
	if result.RunID != "" {
		formatter.VerboseLog("Recorded run %s", result.RunID)
	}
	return nil
}

// export runs the statement and writes its rows to outPath. The cursor is
// closed before returning so the store's single connection is free again.
// On failure no file is left at outPath.
func export(ctx context.Context, st *store.Store, res querysql.Result, outPath string, chunk int) (int64, error) {
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	cur, err := st.Execute(ctx, res.SQL, res.Args...)
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", outPath, err)
	}
	n, err := store.ExportCSV(ctx, cur, f, chunk)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return 0, err
	}
	return n, nil
}
