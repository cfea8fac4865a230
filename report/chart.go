package report

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/trainer"
)

// chartFormats are the file extensions RenderChart writes.
var chartFormats = []string{".png", ".svg", ".pdf"}

// ChartOption configures RenderChart.
type ChartOption func(*chartConfig)

type chartConfig struct {
	metrics []string
	width   vg.Length
	height  vg.Length
}

// WithMetrics limits the chart to the given metric keys. By default every
// metric in MetricKeys is drawn.
func WithMetrics(keys ...string) ChartOption {
	return func(c *chartConfig) {
		c.metrics = keys
	}
}

// WithSize sets the image size.
func WithSize(width, height vg.Length) ChartOption {
	return func(c *chartConfig) {
		c.width = width
		c.height = height
	}
}

// RenderChart draws a grouped bar chart, one group per model and one bar
// per metric, and saves it to path. The format follows the file extension.
func RenderChart(res *comparator.ComparisonResult, path string, opts ...ChartOption) error {
	cfg := chartConfig{width: 10 * vg.Inch, height: 5 * vg.Inch}
	for _, opt := range opts {
		opt(&cfg)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !lo.Contains(chartFormats, ext) {
		return errors.NewValidationError("path", "unsupported chart format, use .png, .svg or .pdf", path)
	}
	if len(res.Models) == 0 {
		return errors.NewValueError("RenderChart", "no models to plot")
	}

	keys := cfg.metrics
	if len(keys) == 0 {
		keys = MetricKeys(res)
	}

	p, err := newBarPlot(res, keys)
	if err != nil {
		return err
	}
	if err := p.Save(cfg.width, cfg.height, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}

func newBarPlot(res *comparator.ComparisonResult, keys []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Model comparison (" + res.TaskType + ")"
	p.Y.Label.Text = "Score"
	p.Legend.Top = true

	barWidth := vg.Points(60 / float64(len(keys)))
	for i, key := range keys {
		values := lo.Map(res.Models, func(m trainer.ModelResult, _ int) float64 {
			return m.Metrics[key]
		})
		bars, err := plotter.NewBarChart(plotter.Values(values), barWidth)
		if err != nil {
			return nil, errors.Wrapf(err, "bar chart for %s", key)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(float64(i)-float64(len(keys)-1)/2)
		p.Add(bars)
		p.Legend.Add(FormatMetricName(key), bars)
	}
	p.NominalX(lo.Map(res.Models, func(m trainer.ModelResult, _ int) string { return m.Name })...)
	return p, nil
}
