package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/report"
)

// Output formats of the compare command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

func newCompareCommand(a *app) *cobra.Command {
	var (
		format    string
		chartPath string
		metrics   []string
	)

	cmd := &cobra.Command{
		Use:   "compare <file.csv>",
		Short: "Compare models on a local CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != FormatTable && format != FormatJSON && format != FormatCSV {
				return errors.NewValidationError("format", "must be table, json or csv", format)
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return errors.Wrap(err, "open dataset")
			}
			if info.Size() > a.cfg.Upload.MaxFileSize {
				return errors.NewValidationError("file", "file size exceeds the maximum size", info.Size())
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read dataset")
			}

			cmp := comparator.New(comparator.WithLogger(a.logger), comparator.WithConfig(comparatorConfig(a)))
			res, err := cmp.CompareModels(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case FormatJSON:
				err = report.WriteJSON(out, res, true)
			case FormatCSV:
				err = report.WriteCSV(out, res)
			default:
				err = report.WriteTable(out, res)
			}
			if err != nil {
				return err
			}

			if chartPath != "" {
				if err := report.RenderChart(res, chartPath, report.WithMetrics(metrics...)); err != nil {
					return err
				}
				cmd.PrintErrln("chart written to " + chartPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "output format: table, json or csv")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write a bar chart of the scores (.png, .svg or .pdf)")
	cmd.Flags().StringSliceVar(&metrics, "chart-metrics", nil, "metrics to draw, default all")
	cmd.Flags().Int64("max-file-size", 100*1024*1024, "maximum dataset size in bytes")
	return cmd
}
