package notify

import (
	"testing"
	"time"

	"cluster-drift-monitor/pkg/models"
)

func TestAlertConstructors(t *testing.T) {
	vm := models.VirtualMachine{InstanceID: "i-123", PrivateIP: "10.0.0.5", Provider: models.ProviderAWS}
	node := models.ClusterNode{Name: "worker-1"}

	missing := NewMissingNodeAlert(vm)
	if missing.Template != TemplateMissingNode || missing.Key != "missing-node:i-123" {
		t.Errorf("Unexpected missing-node alert: %+v", missing)
	}
	if missing.ID == "" {
		t.Error("Expected alert ID to be set")
	}

	labels := []string{"b", "c"}
	labelAlert := NewMissingLabelsAlert(vm, node, labels)
	labels[0] = "mutated"
	got := labelAlert.Params["missingLabels"].([]string)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Expected labels copied as [b c], got %v", got)
	}
	if labelAlert.Params["nodeName"] != "worker-1" {
		t.Errorf("Expected node name param, got %v", labelAlert.Params["nodeName"])
	}

	notReady := NewDeploymentNotReadyAlert("prod", "api", 3, 2)
	if notReady.Params["requiredReplicas"] != int32(3) || notReady.Params["readyReplicas"] != int32(2) {
		t.Errorf("Unexpected replica params: %v", notReady.Params)
	}

	ts := time.Unix(1700000000, 0)
	threshold := NewThresholdAlert(models.ThresholdEvent{Key: "cpu", Threshold: 80, Actual: 95, Timestamp: ts})
	if !threshold.Time.Equal(ts) {
		t.Errorf("Expected alert time to follow event timestamp")
	}
	if threshold.Key != "threshold-exceeded:cpu" {
		t.Errorf("Unexpected key %s", threshold.Key)
	}
}
