package monitor

import (
	"context"

	"cluster-drift-monitor/pkg/models"

	appsv1 "k8s.io/api/apps/v1"
)

// Monitor is one periodic check driven by the scheduler
type Monitor interface {
	Name() string
	Run(ctx context.Context) error
}

// RegionSource lists the cloud regions configured on the platform
type RegionSource interface {
	ListRegions(ctx context.Context) ([]models.CloudRegion, error)
}

// FetchStrategy lists running instances for one provider
type FetchStrategy interface {
	FetchRunningVMs(ctx context.Context, region models.CloudRegion) ([]models.VirtualMachine, error)
}

// StrategyResolver maps a provider to its fetch strategy
type StrategyResolver interface {
	Lookup(provider models.Provider) (FetchStrategy, bool)
}

// NodeLookup finds cluster nodes by IP address
type NodeLookup interface {
	FindNodesByAddress(ctx context.Context, ip string) ([]models.ClusterNode, error)
}

// JobLoader loads a compute job; a missing job is reported as an error
type JobLoader interface {
	LoadJob(ctx context.Context, id int64) (*models.ComputeJob, error)
}

// DeploymentGetter returns (nil, nil) when the deployment does not exist
type DeploymentGetter interface {
	GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error)
}

// StatsSource returns the latest metric snapshot as raw string values
type StatsSource interface {
	Load(ctx context.Context) (map[string]string, error)
}

// SuppressionRecorder counts alerts dropped before reaching the sink
type SuppressionRecorder interface {
	RecordAlertSuppressed(reason string, count int)
}

// CycleRecorder receives per-cycle reconciliation totals. Findings are counted
// before any debounce, so a suppressed alert is still a finding.
type CycleRecorder interface {
	RecordReconcileCycle(regions, vms, findings int)
}
