package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/cohort/internal/api"
	"github.com/roach88/cohort/internal/querysql"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler over HTTP",
		Long: `Serve the compiler over HTTP until interrupted.

Endpoints:
  POST /v1/compile   compile a request (?dialect=postgres&params=true)
  POST /v1/validate  compile-check a request and list warnings
  GET  /v1/tables    schema graph
  GET  /healthz      liveness
  GET  /metrics      Prometheus metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.newFormatter(cmd)
			logger := rootOpts.newLogger(cmd.ErrOrStderr())

			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			graph, err := rootOpts.loadGraph()
			if err != nil {
				return formatter.Fail(ErrCodeConfig, err)
			}
			if addr == "" {
				addr = cfg.ListenAddr
			}
			if !rootOpts.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			router := api.NewRouter(querysql.NewCompiler(graph), logger)
			if err := api.Serve(ctx, addr, router, logger); err != nil {
				return formatter.Fail(ErrCodeGeneric, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
