package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/store"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		Example: `  cohort history
  cohort history --limit 5 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, dbPath, limit, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")

	return cmd
}

func runHistory(opts *RootOptions, dbPath string, limit int, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	if dbPath == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return formatter.Fail(ErrCodeConfig, err)
		}
		dbPath = cfg.DatabasePath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ErrCodeNotFound, fmt.Errorf("database not found: %w", err))
	}

	st, err := store.OpenReadOnly(dbPath)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}

	if formatter.Format == "json" {
		if runs == nil {
			runs = []store.Run{}
		}
		return formatter.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		ctx := r.Context
		if ctx == "" {
			ctx = "-"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  %-8s  %6d row(s)  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Fingerprint[:min(12, len(r.Fingerprint))], ctx, r.RowCount, r.OutputPath)
	}
	return nil
}
