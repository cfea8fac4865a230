package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// WriteTable writes a dataset summary followed by one table row per model.
// Metrics a model did not report are shown as "-".
func WriteTable(w io.Writer, res *comparator.ComparisonResult) error {
	target := "(none)"
	if res.DatasetInfo.Target != nil {
		target = *res.DatasetInfo.Target
	}
	if _, err := fmt.Fprintf(w, "Task: %s  Rows: %d  Columns: %d  Target: %s\n",
		res.TaskType, res.DatasetInfo.Rows, res.DatasetInfo.Columns, target); err != nil {
		return errors.Wrap(err, "write summary")
	}
	prep := res.PreprocessingInfo
	if _, err := fmt.Fprintf(w, "Missing values handled: %d  Categorical features encoded: %d  Features scaled: %t\n",
		prep.MissingValuesHandled, prep.CategoricalFeaturesEncoded, prep.FeaturesScaled); err != nil {
		return errors.Wrap(err, "write summary")
	}

	keys := MetricKeys(res)
	headers := append([]string{"Model"}, lo.Map(keys, func(k string, _ int) string { return FormatMetricName(k) })...)
	headers = append(headers, "Training Time (s)")

	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(headers)...)
	for _, m := range res.Models {
		row := []string{m.Name}
		for _, k := range keys {
			v, ok := m.Metrics[k]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
		}
		row = append(row, strconv.FormatFloat(m.TrainingTime, 'f', 3, 64))
		if err := table.Append(row); err != nil {
			return errors.Wrapf(err, "append row %s", m.Name)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render table")
	}
	return nil
}
