package plots

import (
	"math"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyFixture() *History {
	h := NewHistory()
	for step := 1; step <= 5; step++ {
		h.Add(Point{MetricName: "Train: Moving Average Loss", MetricType: "loss",
			Step: float64(step * 100), Value: 1 / float64(step)})
		h.Add(Point{MetricName: "Eval on test-eval: Mean Accuracy", MetricType: "accuracy",
			Step: float64(step * 100), Value: 0.8 + 0.03*float64(step)})
	}
	return h
}

func TestHistoryAdd(t *testing.T) {
	h := NewHistory()
	h.Add(Point{MetricName: "loss", MetricType: "loss", Step: 1, Value: 0.5})
	h.Add(Point{MetricName: "loss", MetricType: "loss", Step: 2, Value: math.NaN()})
	h.Add(Point{MetricName: "loss", MetricType: "loss", Step: 3, Value: math.Inf(1)})
	h.Add(Point{MetricName: "loss", MetricType: "loss", Step: 4, Value: 0.25})
	require.Len(t, h.Points(), 2, "NaN and Inf points must be dropped")
}

func TestHistoryHTML(t *testing.T) {
	h := historyFixture()
	html := h.HTML()
	assert.Contains(t, html, "<svg")
	assert.Contains(t, html, "loss metrics")
	assert.Contains(t, html, "accuracy metrics")
	assert.Contains(t, html, "Steps")
}

func TestHistorySummary(t *testing.T) {
	h := historyFixture()
	summary := h.Summary()
	assert.Contains(t, summary, "Train: Moving Average Loss")
	assert.Contains(t, summary, "Eval on test-eval: Mean Accuracy")
	assert.Contains(t, summary, "0.2000") // Last loss: 1/5.
	assert.Contains(t, summary, "0.9500") // Last accuracy: 0.8 + 0.15.
	assert.Contains(t, summary, "500")    // Last step.
}

func TestHistorySaveHTML(t *testing.T) {
	h := historyFixture()
	base := path.Join(t.TempDir(), "curves.html")
	require.NoError(t, h.SaveHTML(base))

	for _, metricType := range []string{"loss", "accuracy"} {
		contents, err := os.ReadFile(path.Join(path.Dir(base), "curves-"+metricType+".html"))
		require.NoErrorf(t, err, "expected a file for the %q metrics", metricType)
		assert.Contains(t, string(contents), "plotly")
	}

	require.Error(t, NewHistory().SaveHTML(base), "empty history must not write files")
}
