package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cluster-drift-monitor/pkg/models"
	"cluster-drift-monitor/pkg/notify"

	"k8s.io/klog/v2"
)

// VMNodeOptions configures the VM to node reconciliation
type VMNodeOptions struct {
	// RequiredLabels must be present as keys on every node backing a VM
	RequiredLabels []string
	// JobIDTag is the VM tag holding the id of the job that provisioned it
	JobIDTag string
}

// VMNodeReconciler cross-checks running cloud VMs against registered cluster
// nodes. It alerts on VMs with no node and on nodes missing required labels,
// unless the VM belongs to a job that is still running.
type VMNodeReconciler struct {
	regions    RegionSource
	strategies StrategyResolver
	nodes      NodeLookup
	jobs       JobLoader
	sink       notify.Sink
	recorder   CycleRecorder

	requiredLabels []string
	jobIDTag       string
}

func NewVMNodeReconciler(
	regions RegionSource,
	strategies StrategyResolver,
	nodes NodeLookup,
	jobs JobLoader,
	sink notify.Sink,
	opts VMNodeOptions,
) *VMNodeReconciler {
	return &VMNodeReconciler{
		regions:        regions,
		strategies:     strategies,
		nodes:          nodes,
		jobs:           jobs,
		sink:           sink,
		requiredLabels: append([]string(nil), opts.RequiredLabels...),
		jobIDTag:       opts.JobIDTag,
	}
}

// WithRecorder attaches a recorder for per-cycle totals
func (r *VMNodeReconciler) WithRecorder(rec CycleRecorder) *VMNodeReconciler {
	r.recorder = rec
	return r
}

func (r *VMNodeReconciler) Name() string {
	return "vm-node"
}

// Run performs one reconciliation pass over every region
func (r *VMNodeReconciler) Run(ctx context.Context) error {
	regions, err := r.regions.ListRegions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}

	var scanned, vmCount, findings int
	for _, region := range regions {
		strategy, ok := r.strategies.Lookup(region.Provider)
		if !ok {
			klog.Infof("No VM fetch strategy for provider %s, skipping region %s", region.Provider, region.Code)
			continue
		}
		scanned++

		vms, err := strategy.FetchRunningVMs(ctx, region)
		if err != nil {
			klog.Warningf("Failed to fetch running VMs in region %s: %v", region, err)
			continue
		}
		klog.V(3).Infof("Checking %d running VMs in region %s", len(vms), region)

		for _, vm := range vms {
			vmCount++
			findings += r.checkVM(ctx, region, vm)
		}
	}

	klog.Infof("VM reconciliation finished: %d regions, %d VMs, %d findings", scanned, vmCount, findings)
	if r.recorder != nil {
		r.recorder.RecordReconcileCycle(scanned, vmCount, findings)
	}
	return nil
}

// checkVM evaluates a single VM and returns the number of drift findings,
// whether or not the sink delivered them. Failures and panics stay inside this VM.
func (r *VMNodeReconciler) checkVM(ctx context.Context, region models.CloudRegion, vm models.VirtualMachine) (findings int) {
	defer func() {
		if p := recover(); p != nil {
			klog.Errorf("Panic while checking VM %s in region %s: %v", vm.InstanceID, region, p)
		}
	}()

	nodes, err := r.nodes.FindNodesByAddress(ctx, vm.PrivateIP)
	if err != nil {
		klog.Warningf("Failed to look up nodes for VM %s (%s): %v", vm.InstanceID, vm.PrivateIP, err)
		return 0
	}

	if len(nodes) == 0 {
		if r.coveredByActiveJob(ctx, vm) {
			klog.V(3).Infof("VM %s has no node yet but its job is still active", vm.InstanceID)
			return 0
		}
		r.send(ctx, notify.NewMissingNodeAlert(vm))
		return 1
	}

	for _, node := range nodes {
		if r.coveredByActiveJob(ctx, vm) {
			klog.V(3).Infof("Skipping label check of node %s, job of VM %s is still active", node.Name, vm.InstanceID)
			continue
		}
		missing := MissingLabels(node, r.requiredLabels)
		if len(missing) == 0 {
			continue
		}
		findings++
		r.send(ctx, notify.NewMissingLabelsAlert(vm, node, missing))
	}
	return findings
}

// coveredByActiveJob reports whether the VM's job tag points at a job that is
// not in a final status. Lookup failures count as not covered so that a real
// drift is reported rather than hidden.
func (r *VMNodeReconciler) coveredByActiveJob(ctx context.Context, vm models.VirtualMachine) bool {
	id, ok := JobIDFromTags(vm.Tags, r.jobIDTag)
	if !ok {
		return false
	}

	job, err := r.jobs.LoadJob(ctx, id)
	if err != nil {
		klog.Warningf("Failed to load job %d for VM %s: %v", id, vm.InstanceID, err)
		return false
	}
	if job == nil {
		return false
	}
	return !job.Status.IsFinal()
}

func (r *VMNodeReconciler) send(ctx context.Context, alert notify.Alert) {
	if err := r.sink.Send(ctx, alert); err != nil {
		klog.Warningf("Failed to send %s alert for %s: %v", alert.Template, alert.Key, err)
	}
}

// JobIDFromTags extracts a positive job id from the tag map.
// Absent, blank or non-numeric values yield false.
func JobIDFromTags(tags map[string]string, key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	raw, ok := tags[key]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// MissingLabels returns the required label keys not present on the node, in
// required order. Only the key matters; an empty value still counts as present.
func MissingLabels(node models.ClusterNode, required []string) []string {
	var missing []string
	for _, label := range required {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, ok := node.Labels[label]; !ok {
			missing = append(missing, label)
		}
	}
	return missing
}
