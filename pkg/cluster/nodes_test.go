package cluster

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func createTestNode(name string, labels map[string]string, addresses ...string) *corev1.Node {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
	}
	for _, a := range addresses {
		node.Status.Addresses = append(node.Status.Addresses, corev1.NodeAddress{Type: corev1.NodeInternalIP, Address: a})
	}
	return node
}

func TestNodeIndex_DirectListBeforeSync(t *testing.T) {
	client := fake.NewSimpleClientset(
		createTestNode("node-b", map[string]string{"runid": "12"}, "10.0.0.1"),
		createTestNode("node-a", nil, "10.0.0.1", "node-a.local"),
		createTestNode("node-c", nil, "10.0.0.2"),
	)
	index := NewNodeIndex(client, "runid", time.Minute)

	nodes, err := index.FindNodesByAddress(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("FindNodesByAddress failed: %v", err)
	}

	if len(nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Name != "node-a" || nodes[1].Name != "node-b" {
		t.Errorf("Expected nodes sorted by name, got %s, %s", nodes[0].Name, nodes[1].Name)
	}
	if nodes[1].JobID != "12" {
		t.Errorf("Expected job id 12 from label, got %q", nodes[1].JobID)
	}
}

func TestNodeIndex_CachedLookup(t *testing.T) {
	client := fake.NewSimpleClientset(
		createTestNode("node-a", map[string]string{"pool": "gpu"}, "10.0.0.1"),
		createTestNode("node-b", nil, "10.0.0.2"),
	)
	index := NewNodeIndex(client, "runid", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := index.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	nodes, err := index.FindNodesByAddress(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("FindNodesByAddress failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "node-b" {
		t.Fatalf("Expected node-b, got %v", nodes)
	}

	nodes, err = index.FindNodesByAddress(ctx, "10.9.9.9")
	if err != nil {
		t.Fatalf("FindNodesByAddress failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("Expected no nodes for unknown address, got %d", len(nodes))
	}
}

func TestNodeIndex_EmptyAddress(t *testing.T) {
	index := NewNodeIndex(fake.NewSimpleClientset(createTestNode("n", nil, "10.0.0.1")), "", time.Minute)

	nodes, err := index.FindNodesByAddress(context.Background(), "")
	if err != nil {
		t.Fatalf("FindNodesByAddress failed: %v", err)
	}
	if nodes != nil {
		t.Errorf("Expected nil for empty address, got %v", nodes)
	}
}

func TestToClusterNode(t *testing.T) {
	node := createTestNode("worker-1", map[string]string{"runid": "7", "zone": "a"}, "10.0.0.1", "worker-1")
	cn := ToClusterNode(node, "runid")

	if cn.Name != "worker-1" {
		t.Errorf("Expected name worker-1, got %s", cn.Name)
	}
	if cn.JobID != "7" {
		t.Errorf("Expected job id 7, got %s", cn.JobID)
	}
	if len(cn.Addresses) != 2 {
		t.Errorf("Expected 2 addresses, got %d", len(cn.Addresses))
	}

	node.Labels["zone"] = "b"
	if cn.Labels["zone"] != "a" {
		t.Error("Expected labels to be copied")
	}

	if got := ToClusterNode(node, ""); got.JobID != "" {
		t.Errorf("Expected no job id without a label key, got %s", got.JobID)
	}
}

func TestIndexByAddress(t *testing.T) {
	node := createTestNode("n", nil, "10.0.0.1", "", "10.0.0.1", "n.local")

	keys, err := indexByAddress(node)
	if err != nil {
		t.Fatalf("indexByAddress failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "10.0.0.1" || keys[1] != "n.local" {
		t.Errorf("Unexpected keys %v", keys)
	}

	keys, _ = indexByAddress("not a node")
	if keys != nil {
		t.Errorf("Expected nil keys for foreign object, got %v", keys)
	}
}
