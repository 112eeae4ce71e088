package notify

import (
	"context"
	"time"

	"cluster-drift-monitor/pkg/models"

	"github.com/google/uuid"
)

// Template keys understood by the sinks
const (
	TemplateMissingNode        = "missing-node"
	TemplateNodeMissingLabels  = "node-missing-labels"
	TemplateMissingDeployment  = "missing-deployment"
	TemplateDeploymentNotReady = "deployment-not-ready"
	TemplateThresholdExceeded  = "threshold-exceeded"
)

// Alert is one notification request: a template key plus the structured
// parameters the sink renders. Key names the logical stream the alert
// belongs to and is what debouncing is keyed on.
type Alert struct {
	ID       string                 `json:"id"`
	Template string                 `json:"template"`
	Key      string                 `json:"key"`
	Params   map[string]interface{} `json:"params"`
	Time     time.Time              `json:"time"`
}

// Sink delivers alerts. Several alerts in one call form a single batched notification.
type Sink interface {
	Send(ctx context.Context, alerts ...Alert) error
}

// SinkFunc adapts a plain function to Sink
type SinkFunc func(ctx context.Context, alerts ...Alert) error

func (f SinkFunc) Send(ctx context.Context, alerts ...Alert) error {
	return f(ctx, alerts...)
}

func newAlert(template, subject string, params map[string]interface{}) Alert {
	return Alert{
		ID:       uuid.NewString(),
		Template: template,
		Key:      template + ":" + subject,
		Params:   params,
		Time:     time.Now(),
	}
}

func vmParams(vm models.VirtualMachine) map[string]interface{} {
	return map[string]interface{}{
		"vmId":       vm.InstanceID,
		"vmName":     vm.Name,
		"vmIp":       vm.PrivateIP,
		"vmProvider": string(vm.Provider),
	}
}

// NewMissingNodeAlert reports a running VM with no registered cluster node
func NewMissingNodeAlert(vm models.VirtualMachine) Alert {
	return newAlert(TemplateMissingNode, vm.InstanceID, vmParams(vm))
}

// NewMissingLabelsAlert reports a node backing vm that lacks required labels
func NewMissingLabelsAlert(vm models.VirtualMachine, node models.ClusterNode, missing []string) Alert {
	params := vmParams(vm)
	params["nodeName"] = node.Name
	params["nodeJobId"] = node.JobID
	params["missingLabels"] = append([]string(nil), missing...)
	return newAlert(TemplateNodeMissingLabels, vm.InstanceID+"/"+node.Name, params)
}

// NewMissingDeploymentAlert reports a monitored deployment that does not exist
func NewMissingDeploymentAlert(namespace, name string) Alert {
	return newAlert(TemplateMissingDeployment, namespace+"/"+name, map[string]interface{}{
		"namespace":      namespace,
		"deploymentName": name,
	})
}

// NewDeploymentNotReadyAlert reports a deployment whose ready replicas differ from desired
func NewDeploymentNotReadyAlert(namespace, name string, required, ready int32) Alert {
	return newAlert(TemplateDeploymentNotReady, namespace+"/"+name, map[string]interface{}{
		"namespace":        namespace,
		"deploymentName":   name,
		"requiredReplicas": required,
		"readyReplicas":    ready,
	})
}

// NewThresholdAlert reports a metric above its configured threshold
func NewThresholdAlert(event models.ThresholdEvent) Alert {
	a := newAlert(TemplateThresholdExceeded, event.Key, map[string]interface{}{
		"thresholdKey": event.Key,
		"threshold":    event.Threshold,
		"actual":       event.Actual,
	})
	a.Time = event.Timestamp
	return a
}
