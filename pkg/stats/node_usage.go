package stats

import (
	"context"
	"fmt"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"
	"k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Keys produced by NodeUsageSource
const (
	ClusterCPUKey    = "cluster/cpu"
	ClusterMemoryKey = "cluster/memory"
)

// NodeCPUKey is the per-node CPU usage key, in millicores
func NodeCPUKey(node string) string { return "node/" + node + "/cpu" }

// NodeMemoryKey is the per-node memory usage key, in MiB
func NodeMemoryKey(node string) string { return "node/" + node + "/memory" }

// NodeUsageSource reads node resource usage from the metrics API
type NodeUsageSource struct {
	client metricsv.Interface
}

func NewNodeUsageSource(config *rest.Config) (*NodeUsageSource, error) {
	client, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}
	return &NodeUsageSource{client: client}, nil
}

func (s *NodeUsageSource) Load(ctx context.Context) (map[string]string, error) {
	list, err := s.client.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list node metrics: %w", err)
	}
	return NodeUsage(list), nil
}

// NodeUsage flattens a node metrics list into per-node and cluster-wide totals
func NodeUsage(list *v1beta1.NodeMetricsList) map[string]string {
	out := make(map[string]string)
	if list == nil {
		return out
	}

	var totalCPU, totalMem int64
	for _, m := range list.Items {
		cpuMillis := m.Usage.Cpu().MilliValue()
		memoryMB := m.Usage.Memory().Value() / (1024 * 1024)

		out[NodeCPUKey(m.Name)] = strconv.FormatInt(cpuMillis, 10)
		out[NodeMemoryKey(m.Name)] = strconv.FormatInt(memoryMB, 10)

		totalCPU += cpuMillis
		totalMem += memoryMB
	}
	out[ClusterCPUKey] = strconv.FormatInt(totalCPU, 10)
	out[ClusterMemoryKey] = strconv.FormatInt(totalMem, 10)
	return out
}
