package cluster

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// DeploymentClient reads deployments, mapping NotFound to a nil result
type DeploymentClient struct {
	client  kubernetes.Interface
	timeout time.Duration
}

func NewDeploymentClient(client kubernetes.Interface, timeout time.Duration) *DeploymentClient {
	return &DeploymentClient{client: client, timeout: timeout}
}

func (d *DeploymentClient) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	deployment, err := d.client.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deployment, nil
}
