package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exposes monitor and alerting metrics to Prometheus.
// A nil *PrometheusExporter is valid and records nothing.
type PrometheusExporter struct {
	// Scheduler metrics
	MonitorRuns     *prometheus.CounterVec
	MonitorDuration *prometheus.HistogramVec
	MonitorSkipped  *prometheus.CounterVec

	// Alert metrics
	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec

	// Reconciler metrics
	ReconcilerVMs      prometheus.Gauge
	ReconcilerRegions  prometheus.Gauge
	ReconcilerFindings prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewPrometheusExporter registers all collectors on reg under the given namespace
func NewPrometheusExporter(namespace string, reg *prometheus.Registry) *PrometheusExporter {
	factory := promauto.With(reg)

	return &PrometheusExporter{
		MonitorRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_runs_total",
				Help:      "Total number of monitor cycles by result (success/failure/panic)",
			},
			[]string{"monitor", "result"},
		),
		MonitorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "monitor_run_duration_seconds",
				Help:      "Duration of monitor cycles in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"monitor"},
		),
		MonitorSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_skipped_total",
				Help:      "Total number of triggers skipped because the monitor is disabled",
			},
			[]string{"monitor"},
		),
		AlertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_sent_total",
				Help:      "Total number of alerts accepted by each notification sink by template",
			},
			[]string{"sink", "template"},
		),
		AlertsSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_suppressed_total",
				Help:      "Total number of per-sink deliveries dropped by cooldown or debounce",
			},
			[]string{"reason"},
		),
		ReconcilerVMs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_vms",
				Help:      "Number of running VMs seen in the last reconciliation cycle",
			},
		),
		ReconcilerRegions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_regions",
				Help:      "Number of regions scanned in the last reconciliation cycle",
			},
		),
		ReconcilerFindings: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconciler_findings",
				Help:      "Number of drift findings in the last reconciliation cycle, before debounce",
			},
		),
		gatherer: reg,
	}
}

// Handler serves the registry this exporter was created with
func (e *PrometheusExporter) Handler() http.Handler {
	if e == nil || e.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

func (e *PrometheusExporter) RecordMonitorRun(monitor, result string, seconds float64) {
	if e == nil {
		return
	}
	e.MonitorRuns.WithLabelValues(monitor, result).Inc()
	e.MonitorDuration.WithLabelValues(monitor).Observe(seconds)
}

func (e *PrometheusExporter) RecordMonitorSkipped(monitor string) {
	if e == nil {
		return
	}
	e.MonitorSkipped.WithLabelValues(monitor).Inc()
}

func (e *PrometheusExporter) RecordAlertSent(sink, template string) {
	if e == nil {
		return
	}
	e.AlertsSent.WithLabelValues(sink, template).Inc()
}

func (e *PrometheusExporter) RecordAlertSuppressed(reason string, count int) {
	if e == nil || count <= 0 {
		return
	}
	e.AlertsSuppressed.WithLabelValues(reason).Add(float64(count))
}

func (e *PrometheusExporter) RecordReconcileCycle(regions, vms, findings int) {
	if e == nil {
		return
	}
	e.ReconcilerRegions.Set(float64(regions))
	e.ReconcilerVMs.Set(float64(vms))
	e.ReconcilerFindings.Set(float64(findings))
}
