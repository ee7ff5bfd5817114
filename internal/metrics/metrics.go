package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Stage names used for duration observations.
const (
	StageExtract = "extract"
	StageResolve = "resolve"
	StageConvert = "convert"
	StageReload  = "reload"
	StagePublish = "publish"
)

// Metrics holds the Prometheus metrics of one importer process
type Metrics struct {
	registry      *prometheus.Registry
	conversions   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	outputBytes   prometheus.Counter
}

// NewMetrics creates the metrics on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbx2gltf_conversions_total",
				Help: "Total number of conversion requests by result and container",
			},
			[]string{"result", "container"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fbx2gltf_stage_duration_seconds",
				Help:    "Duration of each importer stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		outputBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fbx2gltf_output_bytes_total",
				Help: "Total size of written model files in bytes",
			},
		),
	}
	m.registry.MustRegister(m.conversions, m.stageDuration, m.outputBytes)
	return m
}

// RecordConversion counts one finished request
func (m *Metrics) RecordConversion(success, binary bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	container := "gltf"
	if binary {
		container = "glb"
	}
	m.conversions.WithLabelValues(result, container).Inc()
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddOutputBytes adds the size of a written model
func (m *Metrics) AddOutputBytes(n int64) {
	if n > 0 {
		m.outputBytes.Add(float64(n))
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format, as read by
// the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
