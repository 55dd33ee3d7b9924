package provisioning

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage results recorded in metrics.
const (
	ResultSuccess = "success"
	ResultSoft    = "soft"
	ResultFatal   = "fatal"
)

// RunMetrics records per-stage durations and results of one run, for the
// node exporter textfile collector. A nil *RunMetrics records nothing.
type RunMetrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.GaugeVec
	stageResult   *prometheus.GaugeVec
	warnings      prometheus.Counter
	lastRun       prometheus.Gauge
	success       prometheus.Gauge
}

// NewRunMetrics creates the metrics of one run on a private registry.
func NewRunMetrics(release string) *RunMetrics {
	labels := prometheus.Labels{"release": release}
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "cost_onprem",
				Subsystem:   "installer",
				Name:        "stage_duration_seconds",
				Help:        "Duration of each installer stage in seconds",
				ConstLabels: labels,
			},
			[]string{"stage"},
		),
		stageResult: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "cost_onprem",
				Subsystem:   "installer",
				Name:        "stage_result",
				Help:        "Result of each installer stage (1 for the observed result)",
				ConstLabels: labels,
			},
			[]string{"stage", "result"},
		),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cost_onprem",
			Subsystem:   "installer",
			Name:        "warnings_total",
			Help:        "Soft failures recorded during the run",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cost_onprem",
			Subsystem:   "installer",
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the run finished",
			ConstLabels: labels,
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cost_onprem",
			Subsystem:   "installer",
			Name:        "last_run_success",
			Help:        "1 if the run finished without a fatal failure",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.stageDuration, m.stageResult, m.warnings, m.lastRun, m.success)
	return m
}

// ObserveStage records the duration and result of a stage.
func (m *RunMetrics) ObserveStage(stage, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
	m.stageResult.WithLabelValues(stage, result).Set(1)
	if result == ResultSoft {
		m.warnings.Inc()
	}
}

// Finish records the end of the run.
func (m *RunMetrics) Finish(success bool) {
	if m == nil {
		return
	}
	m.lastRun.SetToCurrentTime()
	if success {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}
}

// Gatherer exposes the run's registry.
func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics atomically in the text exposition format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
