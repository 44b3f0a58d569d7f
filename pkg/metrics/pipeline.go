package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records batch run outcomes. A nil receiver or an
// unregistered instance is safe and drops every observation.
type PipelineMetrics struct {
	runDuration *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	rows        *prometheus.CounterVec
	files       prometheus.Counter
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_run_duration_seconds",
		Help:    "Duration of pipeline runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Pipeline runs by terminal status.",
	}, []string{"status"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_rows_total",
		Help: "Rows seen by the pipeline per stage.",
	}, []string{"stage"})
	files := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_files_selected_total",
		Help: "Trip files admitted by the watermark selector.",
	})
	reg.MustRegister(runDuration, runs, rows, files)
	return &PipelineMetrics{
		runDuration: runDuration,
		runs:        runs,
		rows:        rows,
		files:       files,
	}
}

// ObserveRun records one finished run under its terminal status.
func (p *PipelineMetrics) ObserveRun(status string, duration time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(normalizeLabel(status)).Observe(duration.Seconds())
	p.runs.WithLabelValues(normalizeLabel(status)).Inc()
}

// AddRows accumulates a row count for the named stage.
func (p *PipelineMetrics) AddRows(stage string, count int) {
	if p == nil || p.rows == nil || count <= 0 {
		return
	}
	p.rows.WithLabelValues(normalizeLabel(stage)).Add(float64(count))
}

// AddFilesSelected accumulates the number of admitted source files.
func (p *PipelineMetrics) AddFilesSelected(count int) {
	if p == nil || p.files == nil || count <= 0 {
		return
	}
	p.files.Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
