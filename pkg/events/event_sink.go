package events

import (
	"context"
	"fmt"
	"strings"

	"cluster-drift-monitor/pkg/notify"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"
)

const (
	ReasonNodeMissingLabels  = "NodeMissingLabels"
	ReasonDeploymentNotReady = "DeploymentNotReady"
)

// Component is the event source reported to the cluster
const Component = "drift-monitor"

// EventSink mirrors alerts about existing cluster objects as Warning events on
// those objects. Alerts with no live object behind them, such as a missing
// deployment or a VM without a node, are ignored.
type EventSink struct {
	recorder record.EventRecorder
}

func NewEventSink(recorder record.EventRecorder) *EventSink {
	return &EventSink{recorder: recorder}
}

// NewBroadcastRecorder returns a recorder that writes events through the API
// server, plus a stop function that flushes the broadcaster.
func NewBroadcastRecorder(client kubernetes.Interface) (record.EventRecorder, func()) {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartStructuredLogging(4)
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: client.CoreV1().Events("")})
	recorder := broadcaster.NewRecorder(scheme.Scheme, corev1.EventSource{Component: Component})
	return recorder, broadcaster.Shutdown
}

func (s *EventSink) Send(_ context.Context, alerts ...notify.Alert) error {
	if s.recorder == nil {
		return nil
	}
	for _, a := range alerts {
		ref, reason, ok := objectFor(a)
		if !ok {
			continue
		}
		s.recorder.Event(ref, corev1.EventTypeWarning, reason, Message(a))
		klog.V(4).Infof("Recorded %s event on %s %s", reason, ref.Kind, ref.Name)
	}
	return nil
}

// objectFor maps an alert to the cluster object it concerns
func objectFor(a notify.Alert) (*corev1.ObjectReference, string, bool) {
	str := func(key string) string {
		v, _ := a.Params[key].(string)
		return v
	}

	switch a.Template {
	case notify.TemplateNodeMissingLabels:
		name := str("nodeName")
		if name == "" {
			return nil, "", false
		}
		return &corev1.ObjectReference{APIVersion: "v1", Kind: "Node", Name: name}, ReasonNodeMissingLabels, true
	case notify.TemplateDeploymentNotReady:
		name, ns := str("deploymentName"), str("namespace")
		if name == "" {
			return nil, "", false
		}
		return &corev1.ObjectReference{APIVersion: "apps/v1", Kind: "Deployment", Namespace: ns, Name: name}, ReasonDeploymentNotReady, true
	default:
		return nil, "", false
	}
}

// Message is the short human readable event text for an alert
func Message(a notify.Alert) string {
	switch a.Template {
	case notify.TemplateNodeMissingLabels:
		missing, _ := a.Params["missingLabels"].([]string)
		return fmt.Sprintf("Node backing instance %v is missing required labels: %s", a.Params["vmId"], strings.Join(missing, ", "))
	case notify.TemplateDeploymentNotReady:
		return fmt.Sprintf("%v of %v replicas ready", a.Params["readyReplicas"], a.Params["requiredReplicas"])
	default:
		return a.Template
	}
}
