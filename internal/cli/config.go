package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cohort/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write the default configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.newFormatter(cmd)

			path, err := rootOpts.configPath()
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return formatter.Fail(ErrCodeWriteFailed, fmt.Errorf("%s already exists (use --force to overwrite)", path))
			}
			if err := config.Save(path, config.Default()); err != nil {
				return formatter.Fail(ErrCodeWriteFailed, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"path": path})
			}
			fmt.Fprintf(formatter.Writer, "✓ Wrote default config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.newFormatter(cmd)

			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return formatter.Fail(ErrCodeGeneric, err)
			}
			_, err = formatter.Writer.Write(data)
			return err
		},
	}
}
