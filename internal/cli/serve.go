package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/internal/server"
	"github.com/matzehuels/mallows/pkg/observability"
)

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		cfg     server.Config
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API:

  GET  /healthz                 build information
  GET  /metrics                 Prometheus metrics
  POST /v1/runs                 run the optimizer
  GET  /v1/runs                 list runs
  GET  /v1/runs/{id}            show a run
  GET  /v1/runs/{id}/tour.svg   draw a run's tour

Runs share the run cache and run store of the other commands, so --redis
and --mongo apply here too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			if cfg.DataDir, err = c.problemDir(); err != nil {
				return err
			}
			cfg.Logger = loggerFromContext(ctx)

			hooks := observability.NewPrometheusHooks(prometheus.DefaultRegisterer)
			observability.SetRunHooks(hooks)
			observability.SetCacheHooks(hooks)
			observability.SetHTTPHooks(hooks)
			defer observability.Reset()

			return server.New(runner, cfg).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfg.Addr, "addr", "a", server.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&cfg.MaxRunTime, "max-run-time", server.DefaultMaxRunTime, "maximum duration of one run request")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the run cache")
	return cmd
}
