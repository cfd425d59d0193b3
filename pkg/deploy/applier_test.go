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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/ahoma/shipmate/pkg/logging"
)

func testDeployment(name, namespace string, replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	}
}

func testService(app, namespace string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: ServiceName(app), Namespace: namespace},
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{{Port: 80}},
		},
	}
}

func testIngress(app, namespace, host string) *networkingv1.Ingress {
	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: IngressName(app), Namespace: namespace},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{Host: host}},
		},
	}
}

func TestApplyDeploymentTwiceYieldsCreatedThenUpdated(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	applier := NewApplier(clientset, logging.Discard())
	ctx := context.Background()

	first := &Descriptor{Kind: KindDeployment, Deployment: testDeployment("orders-api", "staging", 2)}
	status, err := applier.Apply(ctx, first, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, status)

	second := &Descriptor{Kind: KindDeployment, Deployment: testDeployment("orders-api", "staging", 3)}
	status, err = applier.Apply(ctx, second, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, status)

	stored, err := clientset.AppsV1().Deployments("staging").Get(ctx, "orders-api", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), *stored.Spec.Replicas)
}

func TestApplyServiceTwiceLeavesExistingUntouched(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	applier := NewApplier(clientset, logging.Discard())
	ctx := context.Background()

	first := testService("orders-api", "staging")
	status, err := applier.Apply(ctx, &Descriptor{Kind: KindService, Service: first}, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, status)

	replacement := testService("orders-api", "staging")
	replacement.Spec.Ports[0].Port = 9999
	status, err = applier.Apply(ctx, &Descriptor{Kind: KindService, Service: replacement}, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusExists, status)

	stored, err := clientset.CoreV1().Services("staging").Get(ctx, ServiceName("orders-api"), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(80), stored.Spec.Ports[0].Port, "existing service must not be replaced")
}

func TestApplyIngressTwiceYieldsCreatedThenUpdated(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	applier := NewApplier(clientset, logging.Discard())
	ctx := context.Background()

	status, err := applier.Apply(ctx, &Descriptor{Kind: KindIngress, Ingress: testIngress("orders-api", "staging", "old.example.com")}, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, status)

	status, err = applier.Apply(ctx, &Descriptor{Kind: KindIngress, Ingress: testIngress("orders-api", "staging", "new.example.com")}, "staging")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, status)

	stored, err := clientset.NetworkingV1().Ingresses("staging").Get(ctx, IngressName("orders-api"), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "new.example.com", stored.Spec.Rules[0].Host)
}

func TestApplyPropagatesUnclassifiedErrors(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	boom := errors.New("apiserver on fire")
	clientset.PrependReactor("create", "deployments", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, boom
	})

	applier := NewApplier(clientset, logging.Discard())
	status, err := applier.Apply(context.Background(), &Descriptor{Kind: KindDeployment, Deployment: testDeployment("orders-api", "staging", 1)}, "staging")

	assert.Equal(t, StatusError, status)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "orders-api")
}

func TestApplyUnsupportedKind(t *testing.T) {
	applier := NewApplier(fake.NewSimpleClientset(), logging.Discard())

	status, err := applier.Apply(context.Background(), &Descriptor{Kind: Kind("ConfigMap")}, "staging")
	assert.Equal(t, StatusError, status)
	assert.Error(t, err)
}
