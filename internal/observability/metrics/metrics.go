package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/invoice-reader/constants"
)

// PipelineMetrics counts per-file outcomes and times each pipeline stage.
type PipelineMetrics struct {
	registry      *prometheus.Registry
	files         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	uploads       prometheus.Counter
	sessions      prometheus.Gauge
}

// New registers the pipeline collectors plus Go and process collectors on a fresh registry.
func New() *PipelineMetrics {
	return newPipelineMetrics(prometheus.NewRegistry(), true)
}

func newPipelineMetrics(registry *prometheus.Registry, runtime bool) *PipelineMetrics {
	files := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_files_processed_total",
		Help: "Invoice files by terminal status.",
	}, []string{"status"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoice_stage_duration_seconds",
		Help:    "Latency of each pipeline stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"stage"})
	uploads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoice_upload_batches_total",
		Help: "Upload batches received by the UI.",
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "invoice_sessions_live",
		Help: "Live UI sessions.",
	})

	registry.MustRegister(files, stageDuration, uploads, sessions)
	if runtime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// pre-create every status so dashboards see zeros
	for _, s := range constants.AllFileStatuses {
		files.WithLabelValues(string(s))
	}

	return &PipelineMetrics{
		registry:      registry,
		files:         files,
		stageDuration: stageDuration,
		uploads:       uploads,
		sessions:      sessions,
	}
}

func (m *PipelineMetrics) ObserveOutcome(status constants.FileStatus) {
	m.files.WithLabelValues(string(status)).Inc()
}

func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) ObserveUpload() { m.uploads.Inc() }

func (m *PipelineMetrics) SetLiveSessions(n int) { m.sessions.Set(float64(n)) }

// Handler serves the registry in the Prometheus text format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PipelineMetrics) Registry() *prometheus.Registry { return m.registry }
