package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/config"
	"github.com/roach88/cohort/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // "text" | "json"
	ConfigPath string
	SchemaPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cohort CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cohort",
		Short: "cohort - clinical cohort SQL compiler",
		Long: `Compile predicate trees over the MIMIC clinical schema into SQL.

Requests name the output columns and a tree of value, range and
readmission filters. Tables are joined along the schema graph from
patients, choosing hospital or ED paths by the request context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var msg string
			switch {
			case !slices.Contains(ValidFormats, opts.Format):
				msg = fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			case !slices.Contains(ValidFormats, opts.LogFormat):
				msg = fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats)
			default:
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
			return NewExitError(ExitCommandError, msg)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $HOME/.cohort/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "CUE schema graph to use instead of the built-in MIMIC graph")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// configPath resolves --config or the default location.
func (o *RootOptions) configPath() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the effective configuration.
func (o *RootOptions) loadConfig() (config.Config, error) {
	path, err := o.configPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// loadGraph returns the --schema graph or the built-in one.
func (o *RootOptions) loadGraph() (*schema.Graph, error) {
	if o.SchemaPath == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(o.SchemaPath)
}

// newLogger writes structured logs to w. Info records are shown only with
// --verbose.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// newFormatter builds the formatter for a command's streams.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // keep JSON on stdout clean
		Verbose:   o.Verbose,
	}
}
