package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusExporter_RecordMonitorRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter("test", registry)

	exporter.RecordMonitorRun("vm-node", "success", 1.5)
	exporter.RecordMonitorRun("vm-node", "success", 0.5)
	exporter.RecordMonitorRun("vm-node", "failure", 0.1)

	count := testutil.ToFloat64(exporter.MonitorRuns.WithLabelValues("vm-node", "success"))
	if count != 2.0 {
		t.Errorf("Expected count 2.0, got %f", count)
	}
	count = testutil.ToFloat64(exporter.MonitorRuns.WithLabelValues("vm-node", "failure"))
	if count != 1.0 {
		t.Errorf("Expected count 1.0, got %f", count)
	}
}

func TestPrometheusExporter_Alerts(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter("test", registry)

	exporter.RecordAlertSent("discord", "missing-node")
	exporter.RecordAlertSent("log", "missing-node")
	exporter.RecordAlertSuppressed("cooldown", 3)
	exporter.RecordAlertSuppressed("cooldown", 0)

	if got := testutil.ToFloat64(exporter.AlertsSent.WithLabelValues("discord", "missing-node")); got != 1.0 {
		t.Errorf("Expected 1 alert sent to discord, got %f", got)
	}
	if got := testutil.ToFloat64(exporter.AlertsSuppressed.WithLabelValues("cooldown")); got != 3.0 {
		t.Errorf("Expected 3 suppressed, got %f", got)
	}
}

func TestPrometheusExporter_ReconcileCycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter("test", registry)

	exporter.RecordReconcileCycle(2, 10, 4)

	if got := testutil.ToFloat64(exporter.ReconcilerVMs); got != 10 {
		t.Errorf("Expected 10 VMs, got %f", got)
	}
	if got := testutil.ToFloat64(exporter.ReconcilerRegions); got != 2 {
		t.Errorf("Expected 2 regions, got %f", got)
	}
	if got := testutil.ToFloat64(exporter.ReconcilerFindings); got != 4 {
		t.Errorf("Expected 4 findings, got %f", got)
	}
}

func TestPrometheusExporter_NilIsNoop(t *testing.T) {
	var exporter *PrometheusExporter

	exporter.RecordMonitorRun("x", "success", 1)
	exporter.RecordMonitorSkipped("x")
	exporter.RecordAlertSent("x", "y")
	exporter.RecordAlertSuppressed("x", 1)
	exporter.RecordReconcileCycle(1, 1, 1)
}

func TestPrometheusExporter_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter("drift", registry)
	exporter.RecordMonitorSkipped("thresholds")

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "drift_monitor_skipped_total") {
		t.Error("Expected skipped counter in scrape output")
	}
}
