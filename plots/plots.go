// Copyright 2025-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots collects training metrics into a History and renders
// the loss/accuracy curves of the lessons.
//
// Rendering adapts to where the code runs: under a GoNB notebook kernel
// the curves are drawn inline as Margaid SVG (with transient updates
// while training); from the command line they can be exported as a
// self-contained Plotly HTML file. A lipgloss table summarizes the final
// value of every metric either way.
package plots

import (
	"bytes"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	"github.com/MetalBlueberry/go-plotly/pkg/offline"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	mg "github.com/erkkah/margaid"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/pkg/errors"
)

// Point is one observed metric value at a training step.
type Point struct {
	// MetricName identifies the series, e.g. "Eval on test-eval: Mean Accuracy".
	MetricName string

	// MetricType groups series that share a plot and Y axis, e.g. "loss"
	// or "accuracy".
	MetricType string

	// Step is the global training step, the X coordinate.
	Step float64

	// Value of the metric, the Y coordinate.
	Value float64
}

// History accumulates metric points during training and renders them.
// The zero value is usable; NewHistory also registers eval datasets.
type History struct {
	// Width and Height of rendered plots, in pixels.
	Width, Height int

	evalDatasets []train.Dataset
	points       []Point

	// gonbID of the transient display area, when dynamically updating in
	// a notebook.
	gonbID string
}

// NewHistory returns an empty History. Each of evalDatasets is evaluated
// whenever a point is collected, and their metrics recorded too.
func NewHistory(evalDatasets ...train.Dataset) *History {
	return &History{
		Width:        1024,
		Height:       400,
		evalDatasets: evalDatasets,
	}
}

// Attach registers the History on the loop, collecting numPoints points
// evenly spread over the training steps, plus a final collection and
// render at the end of the loop. When running in a notebook the plot is
// redrawn in place as points arrive.
func (h *History) Attach(loop *train.Loop, numPoints int) {
	if gonbui.IsNotebook {
		h.gonbID = gonbui.UniqueId()
		gonbui.UpdateHTML(h.gonbID, "(...collecting training metrics...)")
	}
	train.NTimesDuringLoop(loop, numPoints, "metrics history", 0, h.collect)
	loop.OnEnd("metrics history", 120, func(loop *train.Loop, metrics []*tensors.Tensor) error {
		if err := h.collect(loop, metrics); err != nil {
			return err
		}
		if gonbui.IsNotebook {
			gonbui.UpdateHTML(h.gonbID, "")
			h.Display()
		}
		return nil
	})
}

// collect records the training metrics of the current step and evaluates
// the registered datasets.
func (h *History) collect(loop *train.Loop, trainMetrics []*tensors.Tensor) error {
	step := float64(loop.LoopStep)
	for i, desc := range loop.Trainer.TrainMetrics() {
		if desc.Name() == "Batch Loss" {
			// Noisy and redundant: the moving average loss is also registered.
			continue
		}
		h.Add(Point{
			MetricName: "Train: " + desc.Name(),
			MetricType: desc.MetricType(),
			Step:       step,
			Value:      shapes.ConvertTo[float64](trainMetrics[i].Value()),
		})
	}
	for _, ds := range h.evalDatasets {
		var evalMetrics []*tensors.Tensor
		if err := exceptions.TryCatch[error](func() { evalMetrics = loop.Trainer.Eval(ds) }); err != nil {
			return errors.WithMessagef(err, "failed evaluating %q for the metrics history", ds.Name())
		}
		for i, desc := range loop.Trainer.EvalMetrics() {
			h.Add(Point{
				MetricName: fmt.Sprintf("Eval on %s: %s", ds.Name(), desc.Name()),
				MetricType: desc.MetricType(),
				Step:       step,
				Value:      shapes.ConvertTo[float64](evalMetrics[i].Value()),
			})
		}
	}
	if gonbui.IsNotebook && h.gonbID != "" {
		gonbui.UpdateHTML(h.gonbID, h.HTML())
	}
	return nil
}

// Add appends one point to the history. NaN and Inf values are dropped:
// they would break the axis ranges.
func (h *History) Add(point Point) {
	if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
		return
	}
	h.points = append(h.points, point)
}

// Points returns all collected points, in collection order.
func (h *History) Points() []Point { return h.points }

// metricTypes returns the distinct metric types, sorted.
func (h *History) metricTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, p := range h.points {
		if !seen[p.MetricType] {
			seen[p.MetricType] = true
			types = append(types, p.MetricType)
		}
	}
	sort.Strings(types)
	return types
}

// seriesOf groups the points of one metric type by metric name, names
// sorted.
func (h *History) seriesOf(metricType string) (names []string, byName map[string][]Point) {
	byName = make(map[string][]Point)
	for _, p := range h.points {
		if p.MetricType != metricType {
			continue
		}
		if _, found := byName[p.MetricName]; !found {
			names = append(names, p.MetricName)
		}
		byName[p.MetricName] = append(byName[p.MetricName], p)
	}
	sort.Strings(names)
	return
}

// HTML renders one Margaid SVG chart per metric type and returns the
// concatenated HTML.
func (h *History) HTML() string {
	var parts []string
	for _, metricType := range h.metricTypes() {
		parts = append(parts, h.chartHTML(metricType))
	}
	return strings.Join(parts, "\n")
}

func (h *History) chartHTML(metricType string) string {
	names, byName := h.seriesOf(metricType)
	allSeries := make([]*mg.Series, 0, len(names))
	allPoints := mg.NewSeries()
	for _, name := range names {
		series := mg.NewSeries(mg.Titled(name))
		for _, p := range byName[name] {
			value := mg.MakeValue(p.Step, p.Value)
			series.Add(value)
			allPoints.Add(value)
		}
		allSeries = append(allSeries, series)
	}

	diagram := mg.New(h.Width, h.Height,
		mg.WithAutorange(mg.XAxis, allSeries...),
		mg.WithAutorange(mg.YAxis, allSeries...),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#f8f8f8"),
	)
	for _, series := range allSeries {
		diagram.Line(series, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Steps")
	diagram.Axis(allPoints, mg.YAxis, diagram.ValueTicker('f', 3, 10), true, metricType)
	diagram.Frame()
	diagram.Title(fmt.Sprintf("%s metrics", metricType))
	diagram.Legend(mg.BottomLeft)

	var buf bytes.Buffer
	if err := diagram.Render(&buf); err != nil {
		return fmt.Sprintf("%+v", errors.Wrapf(err, "failed to render %q chart", metricType))
	}
	return buf.String()
}

// Display renders the charts inline in the notebook. Outside a notebook
// it does nothing -- use SaveHTML or Summary instead.
func (h *History) Display() {
	if !gonbui.IsNotebook {
		return
	}
	gonbui.DisplayHTML(h.HTML())
}

// SaveHTML writes the curves as self-contained interactive Plotly HTML
// files, for runs outside a notebook. One file is written per metric
// type: basePath "plots.html" with "loss" and "accuracy" metrics becomes
// "plots-loss.html" and "plots-accuracy.html".
func (h *History) SaveHTML(basePath string) error {
	if len(h.points) == 0 {
		return errors.Errorf("no metric points collected, nothing to save to %q", basePath)
	}
	return exceptions.TryCatch[error](func() {
		for _, metricType := range h.metricTypes() {
			names, byName := h.seriesOf(metricType)
			fig := &grob.Fig{
				Layout: &grob.Layout{
					Title: &grob.LayoutTitle{Text: ptypes.S(metricType + " metrics")},
					Xaxis: &grob.LayoutXaxis{Showgrid: ptypes.B(true)},
					Yaxis: &grob.LayoutYaxis{Showgrid: ptypes.B(true)},
				},
			}
			for _, name := range names {
				points := byName[name]
				xs := make([]float64, len(points))
				ys := make([]float64, len(points))
				for i, p := range points {
					xs[i], ys[i] = p.Step, p.Value
				}
				fig.Data = append(fig.Data, &grob.Scatter{
					Name: ptypes.S(name),
					Line: &grob.ScatterLine{Shape: grob.ScatterLineShapeLinear},
					X:    ptypes.DataArray(xs),
					Y:    ptypes.DataArray(ys),
				})
			}
			ext := path.Ext(basePath)
			filePath := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(basePath, ext), metricType, ext)
			offline.ToHtml(fig, filePath)
		}
	})
}

// Summary returns a table with the last collected value of every metric.
func (h *History) Summary() string {
	lastValues := make(map[string]Point)
	var names []string
	for _, p := range h.points {
		if _, found := lastValues[p.MetricName]; !found {
			names = append(names, p.MetricName)
		}
		lastValues[p.MetricName] = p
	}
	sort.Strings(names)

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Metric", "Type", "Step", "Value")
	for _, name := range names {
		p := lastValues[name]
		table.Row(name, p.MetricType, fmt.Sprintf("%.0f", p.Step), fmt.Sprintf("%.4f", p.Value))
	}
	return table.Render()
}
