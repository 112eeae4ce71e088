package monitor

import (
	"context"

	"cluster-drift-monitor/pkg/config"
	"cluster-drift-monitor/pkg/notify"

	"k8s.io/klog/v2"
)

// DeploymentMonitor verifies that a fixed set of deployments exist and have
// all desired replicas ready.
type DeploymentMonitor struct {
	getter DeploymentGetter
	refs   []config.DeploymentRef
	sink   notify.Sink
}

func NewDeploymentMonitor(getter DeploymentGetter, refs []config.DeploymentRef, sink notify.Sink) *DeploymentMonitor {
	return &DeploymentMonitor{
		getter: getter,
		refs:   append([]config.DeploymentRef(nil), refs...),
		sink:   sink,
	}
}

func (m *DeploymentMonitor) Name() string {
	return "deployments"
}

// Run checks every configured deployment. Lookup failures are logged per
// deployment and never returned.
func (m *DeploymentMonitor) Run(ctx context.Context) error {
	if len(m.refs) == 0 {
		klog.V(3).Info("No deployments configured for monitoring, skipping")
		return nil
	}

	for _, ref := range m.refs {
		m.check(ctx, ref)
	}
	return nil
}

func (m *DeploymentMonitor) check(ctx context.Context, ref config.DeploymentRef) {
	deployment, err := m.getter.GetDeployment(ctx, ref.Namespace, ref.Name)
	if err != nil {
		klog.Warningf("Failed to get deployment %s: %v", ref, err)
		return
	}

	if deployment == nil {
		klog.Warningf("Deployment %s not found", ref)
		m.send(ctx, notify.NewMissingDeploymentAlert(ref.Namespace, ref.Name))
		return
	}

	var desired int32
	if deployment.Spec.Replicas != nil {
		desired = *deployment.Spec.Replicas
	}
	ready := deployment.Status.ReadyReplicas

	if desired != ready {
		klog.Warningf("Deployment %s has %d/%d replicas ready", ref, ready, desired)
		m.send(ctx, notify.NewDeploymentNotReadyAlert(ref.Namespace, ref.Name, desired, ready))
		return
	}
	klog.V(4).Infof("Deployment %s healthy with %d replicas", ref, ready)
}

func (m *DeploymentMonitor) send(ctx context.Context, alert notify.Alert) {
	if err := m.sink.Send(ctx, alert); err != nil {
		klog.Warningf("Failed to send %s alert for %s: %v", alert.Template, alert.Key, err)
	}
}
