package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

const metricsNamespace = "gdc_fetch"

// Collector is a prometheus.Collector for download runs.
type Collector struct {
	bytesDownloaded prometheus.Counter
	passes          prometheus.Counter
	tasks           *prometheus.CounterVec
	transientErrors *prometheus.CounterVec
	taskDuration    prometheus.Histogram
	lastRunFinished prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector returns a new Collector registered on its own registry.
func NewCollector() *Collector {
	c := &Collector{
		bytesDownloaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bytes_downloaded_total",
				Help:      "Bytes written to destination files.",
			},
		),
		passes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "passes_total",
				Help:      "Streaming passes started, including resumed ones.",
			},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tasks_total",
				Help:      "Manifest tasks finished, by status.",
			}, []string{"status"},
		),
		transientErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transient_errors_total",
				Help:      "Transient failures that were retried, by kind.",
			}, []string{"kind"},
		),
		taskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "task_duration_seconds",
				Help:      "Wall time spent on one manifest task.",
				Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 4 * 3600, 12 * 3600},
			},
		),
		lastRunFinished: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished.",
			},
		),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(c)
	return c
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.bytesDownloaded.Describe(ch)
	c.passes.Describe(ch)
	c.tasks.Describe(ch)
	c.transientErrors.Describe(ch)
	c.taskDuration.Describe(ch)
	c.lastRunFinished.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.bytesDownloaded.Collect(ch)
	c.passes.Collect(ch)
	c.tasks.Collect(ch)
	c.transientErrors.Collect(ch)
	c.taskDuration.Collect(ch)
	c.lastRunFinished.Collect(ch)
}

// ObserveTask records the outcome of one task. res may be nil when the task
// failed before anything was attempted.
func (c *Collector) ObserveTask(status string, res *domain.DownloadResult, elapsed time.Duration) {
	c.tasks.WithLabelValues(status).Inc()
	c.taskDuration.Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	if res.BytesWritten > 0 {
		c.bytesDownloaded.Add(float64(res.BytesWritten))
	}
	c.passes.Add(float64(res.Passes))
	for kind, n := range res.Errors {
		c.transientErrors.WithLabelValues(kind).Add(float64(n))
	}
}

// RunFinished stamps the end of a run.
func (c *Collector) RunFinished(at time.Time) {
	c.lastRunFinished.Set(float64(at.Unix()))
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the registry the collector is registered on
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
