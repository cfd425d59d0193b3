/*
Copyright 2025 The Shipmate Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/ahoma/shipmate/pkg/cluster"
	"github.com/ahoma/shipmate/pkg/logging"
)

// markDeploymentsReady makes every created deployment immediately
// report full readiness, since the fake clientset has no controllers.
func markDeploymentsReady(clientset *fake.Clientset) {
	clientset.PrependReactor("create", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		deployment := action.(k8stesting.CreateAction).GetObject().(*appsv1.Deployment)
		if deployment.Spec.Replicas != nil {
			deployment.Status.ReadyReplicas = *deployment.Spec.Replicas
		}
		return false, nil, nil
	})
}

func TestOrchestratorDeployHappyPath(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	markDeploymentsReady(clientset)

	orchestrator := NewOrchestrator(cluster.NewFromClientset(clientset), logging.Discard(), nil)
	orchestrator.SetReadinessWindow(2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	result, err := orchestrator.Deploy(ctx, DeployParams{
		App:         "orders-api",
		Namespace:   "staging",
		Environment: "staging",
		Image:       "ghcr.io/acme/orders-api:v1",
		Workload:    &WorkloadSpec{Replicas: 2},
		Service:     &ServiceSpec{Port: 80},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.DeployID)
	assert.Equal(t, "deployed", result.Status)
	assert.Equal(t, "ready", result.RolloutStatus)
	assert.Equal(t, "staging", result.Namespace)
	require.Len(t, result.Resources, 2)
	assert.NotEmpty(t, result.URL)

	// Namespace was provisioned with managed-by labels
	ns, err := clientset.CoreV1().Namespaces().Get(ctx, "staging", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ManagedByValue, ns.Labels["app.kubernetes.io/managed-by"])

	// The correlation identifier finds the live deployment
	app, err := orchestrator.FindByDeployID(ctx, result.DeployID, "staging")
	require.NoError(t, err)
	assert.Equal(t, "orders-api", app)
}

func TestOrchestratorDeployTimesOutFatally(t *testing.T) {
	clientset := fake.NewSimpleClientset()

	orchestrator := NewOrchestrator(cluster.NewFromClientset(clientset), logging.Discard(), nil)
	orchestrator.SetReadinessWindow(200*time.Millisecond, 20*time.Millisecond)

	_, err := orchestrator.Deploy(context.Background(), DeployParams{
		App:         "orders-api",
		Namespace:   "staging",
		Environment: "staging",
		Image:       "ghcr.io/acme/orders-api:v1",
		Workload:    &WorkloadSpec{Replicas: 2},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become ready")
}

func TestOrchestratorDeployRejectsInvalidQuantities(t *testing.T) {
	orchestrator := NewOrchestrator(cluster.NewFromClientset(fake.NewSimpleClientset()), logging.Discard(), nil)

	_, err := orchestrator.Deploy(context.Background(), DeployParams{
		App:       "orders-api",
		Namespace: "staging",
		Image:     "img:v1",
		Workload:  &WorkloadSpec{CPURequest: "12parsecs"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized quantity suffix")
}

func TestOrchestratorUnavailableClusterRefusesOperations(t *testing.T) {
	orchestrator := NewOrchestrator(cluster.NewUnavailable("no kubeconfig found"), logging.Discard(), nil)
	ctx := context.Background()

	_, err := orchestrator.Deploy(ctx, DeployParams{
		App: "orders-api", Namespace: "staging", Environment: "staging", Image: "img:v1",
	})
	require.ErrorIs(t, err, cluster.ErrUnavailable)
	assert.Contains(t, err.Error(), "no kubeconfig found")

	require.ErrorIs(t, orchestrator.Rollback(ctx, "deploy-x", "staging"), cluster.ErrUnavailable)

	_, err = orchestrator.FindByDeployID(ctx, "deploy-x", "staging")
	require.ErrorIs(t, err, cluster.ErrUnavailable)

	// Address resolution still answers with the synthesized name.
	assert.Equal(t, "http://orders-api-service.staging.svc.cluster.local",
		orchestrator.ResolveURL(ctx, "orders-api", "staging"))
}

func TestOrchestratorRollbackNotFound(t *testing.T) {
	orchestrator := NewOrchestrator(cluster.NewFromClientset(fake.NewSimpleClientset()), logging.Discard(), nil)

	err := orchestrator.Rollback(context.Background(), "deploy-ghost", "staging")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOrchestratorFindByDeployIDFallsBackToName(t *testing.T) {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "unlabeled-app",
			Namespace: "staging",
			Labels:    map[string]string{LabelDeployID: "deploy-bare"},
		},
	}
	orchestrator := NewOrchestrator(cluster.NewFromClientset(fake.NewSimpleClientset(deployment)), logging.Discard(), nil)

	app, err := orchestrator.FindByDeployID(context.Background(), "deploy-bare", "staging")
	require.NoError(t, err)
	assert.Equal(t, "unlabeled-app", app)
}
