package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcompare/config"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
)

var version = "dev"

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	cfg    *config.Config
	logger log.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var configPath string

	cmd := &cobra.Command{
		Use:   "mlcompare",
		Short: "Compare machine learning models on a CSV dataset",
		Long: `mlcompare detects the learning task of a CSV dataset, preprocesses it and
trains a fixed roster of models, reporting one set of metrics per model.

Run "mlcompare serve" for the HTTP API or "mlcompare compare data.csv" to
compare locally.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := log.SetupLogger(log.Options{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				Output:     cmd.ErrOrStderr(),
				FilePath:   cfg.Log.Path,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAgeDays: cfg.Log.MaxAgeDays,
			})
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json, text, zerolog")
	flags.String("log-path", "", "also write logs to this rotating file")
	flags.Float64("test-size", 0.2, "held-out fraction of rows")
	flags.Int64("random-state", 42, "seed for the split and every estimator")
	flags.Int("n-jobs", -1, "parallelism hint, -1 means one worker per CPU")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newCompareCommand(a))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// 設定の読み込みは不要
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "mlcompare "+version)
		},
	}
}

func execute() error {
	return newRootCommand().Execute()
}
