package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
	"github.com/YuminosukeSato/mlcompare/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Routes:
  GET  /health          liveness check
  GET  /metrics         Prometheus metrics
  POST /api/v1/compare  multipart upload with a "file" field holding a CSV`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cmp := comparator.New(
				comparator.WithLogger(a.logger.With(log.ComponentKey, "comparator")),
				comparator.WithConfig(comparatorConfig(a)),
			)
			srv := server.NewServer(a.cfg, cmp, server.WithLogger(a.logger.With(log.ComponentKey, "server")))
			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "0.0.0.0", "interface to bind")
	flags.Int("port", 8000, "port to listen on")
	flags.Bool("debug", false, "log every request at info level")
	flags.Int("max-concurrent", 4, "comparisons allowed to run at the same time")
	flags.Int64("max-file-size", 100*1024*1024, "maximum upload size in bytes")
	return cmd
}

func comparatorConfig(a *app) comparator.Config {
	return comparator.Config{
		TestSize:    a.cfg.ML.TestSize,
		RandomState: a.cfg.ML.RandomState,
		NJobs:       a.cfg.ML.NJobs,
	}
}
