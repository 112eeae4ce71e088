package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cluster-drift-monitor/pkg/models"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	runtime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"
)

const addressIndex = "address"

// NodeIndex answers node-by-IP queries from a shared informer cache. Until
// the cache has synced, queries go straight to the API server.
type NodeIndex struct {
	client     kubernetes.Interface
	informer   cache.SharedIndexInformer
	jobIDLabel string
}

func NewNodeIndex(client kubernetes.Interface, jobIDLabel string, resync time.Duration) *NodeIndex {
	informer := cache.NewSharedIndexInformer(
		&cache.ListWatch{
			ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Nodes().List(context.Background(), options)
			},
			WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
				return client.CoreV1().Nodes().Watch(context.Background(), options)
			},
		},
		&corev1.Node{},
		resync,
		cache.Indexers{addressIndex: indexByAddress},
	)

	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if node, ok := obj.(*corev1.Node); ok {
				klog.V(4).Infof("Node added to index: %s", node.Name)
			}
		},
		DeleteFunc: func(obj interface{}) {
			key, err := cache.DeletionHandlingMetaNamespaceKeyFunc(obj)
			if err == nil {
				klog.V(4).Infof("Node removed from index: %s", key)
			}
		},
	})
	if err != nil {
		klog.Fatalf("Error adding node event handler: %v", err)
	}

	return &NodeIndex{
		client:     client,
		informer:   informer,
		jobIDLabel: jobIDLabel,
	}
}

// Start runs the informer until ctx is done and blocks until the first sync
func (n *NodeIndex) Start(ctx context.Context) error {
	go n.informer.Run(ctx.Done())

	if !cache.WaitForCacheSync(ctx.Done(), n.informer.HasSynced) {
		return fmt.Errorf("failed to wait for node cache to sync")
	}
	klog.Info("Node cache synced")
	return nil
}

// FindNodesByAddress returns every node reporting ip among its addresses, sorted by name
func (n *NodeIndex) FindNodesByAddress(ctx context.Context, ip string) ([]models.ClusterNode, error) {
	if ip == "" {
		return nil, nil
	}

	var nodes []*corev1.Node
	if n.informer.HasSynced() {
		objs, err := n.informer.GetIndexer().ByIndex(addressIndex, ip)
		if err != nil {
			return nil, fmt.Errorf("index lookup for %s: %w", ip, err)
		}
		for _, obj := range objs {
			if node, ok := obj.(*corev1.Node); ok {
				nodes = append(nodes, node)
			}
		}
	} else {
		list, err := n.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list nodes: %w", err)
		}
		for i := range list.Items {
			if hasAddress(&list.Items[i], ip) {
				nodes = append(nodes, &list.Items[i])
			}
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })

	out := make([]models.ClusterNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, ToClusterNode(node, n.jobIDLabel))
	}
	return out, nil
}

// ToClusterNode converts a node object, reading the owning job id from jobIDLabel
func ToClusterNode(node *corev1.Node, jobIDLabel string) models.ClusterNode {
	labels := make(map[string]string, len(node.Labels))
	for k, v := range node.Labels {
		labels[k] = v
	}

	addresses := make([]string, 0, len(node.Status.Addresses))
	for _, addr := range node.Status.Addresses {
		addresses = append(addresses, addr.Address)
	}

	var jobID string
	if jobIDLabel != "" {
		jobID = labels[jobIDLabel]
	}

	return models.ClusterNode{
		Name:      node.Name,
		Addresses: addresses,
		Labels:    labels,
		JobID:     jobID,
	}
}

func indexByAddress(obj interface{}) ([]string, error) {
	node, ok := obj.(*corev1.Node)
	if !ok {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(node.Status.Addresses))
	var keys []string
	for _, addr := range node.Status.Addresses {
		if addr.Address == "" {
			continue
		}
		if _, dup := seen[addr.Address]; dup {
			continue
		}
		seen[addr.Address] = struct{}{}
		keys = append(keys, addr.Address)
	}
	return keys, nil
}

func hasAddress(node *corev1.Node, ip string) bool {
	for _, addr := range node.Status.Addresses {
		if addr.Address == ip {
			return true
		}
	}
	return false
}
