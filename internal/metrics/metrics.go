// Package metrics records run statistics as Prometheus metrics.
//
// sitediff is a batch tool, so metrics are not scraped from a long-lived
// process. They are written once per run in the text exposition format for
// the node exporter textfile collector, or served by the report server.
// A nil *Recorder accepts every call and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/sitediff/internal/model"
)

// Render phases used as the phase label.
const (
	PhaseCapture = "capture"
	PhaseCompare = "compare"
)

const namespace = "sitediff"

// Recorder holds the metrics of one process on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	pagesCaptured     *prometheus.CounterVec
	renderFailures    *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	diffResults       *prometheus.CounterVec
	diffImageFailures prometheus.Counter
	lastRun           *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pagesCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_captured_total",
			Help:      "Pages rendered and written to disk.",
		}, []string{"phase"}),
		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Pages that could not be rendered or written.",
		}, []string{"phase"}),
		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering one page.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"phase"}),
		diffResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_results_total",
			Help:      "Compared pages by severity bucket.",
		}, []string{"bucket"}),
		diffImageFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_image_failures_total",
			Help:      "Difference images that could not be written.",
		}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}, []string{"phase"}),
	}
}

// PageCaptured counts a page written to disk.
func (r *Recorder) PageCaptured(phase string) {
	if r == nil {
		return
	}
	r.pagesCaptured.WithLabelValues(phase).Inc()
}

// RenderFailed counts a page that failed.
func (r *Recorder) RenderFailed(phase string) {
	if r == nil {
		return
	}
	r.renderFailures.WithLabelValues(phase).Inc()
}

// ObserveRender records the duration of one render.
func (r *Recorder) ObserveRender(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.renderDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// DiffResult counts a comparison result in its bucket.
func (r *Recorder) DiffResult(result model.DiffResult) {
	if r == nil {
		return
	}
	r.diffResults.WithLabelValues(result.Bucket().String()).Inc()
}

// DiffImageFailed counts a difference image that could not be written.
func (r *Recorder) DiffImageFailed() {
	if r == nil {
		return
	}
	r.diffImageFailures.Inc()
}

// RunFinished stamps the end of a phase.
func (r *Recorder) RunFinished(phase string, at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.WithLabelValues(phase).Set(float64(at.Unix()))
}

// Gatherer exposes the registry, e.g. for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics to path atomically, in the format read
// by the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
