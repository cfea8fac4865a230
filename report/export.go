package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// WriteJSON writes res in the API response schema.
func WriteJSON(w io.Writer, res *comparator.ComparisonResult, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return errors.Wrap(err, "encode result")
	}
	return nil
}

// WriteCSV writes one row per model: name, type, training time and the
// metrics in MetricKeys order. Missing metrics are left empty.
func WriteCSV(w io.Writer, res *comparator.ComparisonResult) error {
	keys := MetricKeys(res)
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Model", "Type", "Training Time (s)"}, keys...)); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, m := range res.Models {
		row := []string{m.Name, m.Type, strconv.FormatFloat(m.TrainingTime, 'f', 3, 64)}
		for _, k := range keys {
			if v, ok := m.Metrics[k]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
