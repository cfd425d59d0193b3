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
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/logging"
)

// Applier performs idempotent create-or-update of a single named
// cluster resource. Creation is attempted first; a conflict (the object
// already exists) falls back to a full replace for deployments and
// ingresses, while services are left untouched because their allocated
// cluster IPs make blind replacement unsafe. Any other cluster error
// propagates unchanged; retry policy belongs to the caller.
type Applier struct {
	clientset kubernetes.Interface
	log       *logging.Logger
}

// NewApplier creates a resource applier
func NewApplier(clientset kubernetes.Interface, log *logging.Logger) *Applier {
	return &Applier{
		clientset: clientset,
		log:       log.WithName("applier"),
	}
}

// Apply submits one descriptor, returning the per-resource status
func (a *Applier) Apply(ctx context.Context, desc *Descriptor, namespace string) (ApplyStatus, error) {
	switch desc.Kind {
	case KindDeployment:
		return a.applyDeployment(ctx, desc, namespace)
	case KindService:
		return a.applyService(ctx, desc, namespace)
	case KindIngress:
		return a.applyIngress(ctx, desc, namespace)
	default:
		return StatusError, fmt.Errorf("unsupported resource kind %q", desc.Kind)
	}
}

func (a *Applier) applyDeployment(ctx context.Context, desc *Descriptor, namespace string) (ApplyStatus, error) {
	deployments := a.clientset.AppsV1().Deployments(namespace)

	_, err := deployments.Create(ctx, desc.Deployment, metav1.CreateOptions{})
	if err == nil {
		a.log.Info("Created deployment", "name", desc.Name(), "namespace", namespace)
		return StatusCreated, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return StatusError, fmt.Errorf("failed to create deployment %s/%s: %w", namespace, desc.Name(), err)
	}

	// Conflict: replace the existing object's spec in full. The live
	// resourceVersion must be carried over for the update to be accepted.
	existing, err := deployments.Get(ctx, desc.Name(), metav1.GetOptions{})
	if err != nil {
		return StatusError, fmt.Errorf("failed to read existing deployment %s/%s: %w", namespace, desc.Name(), err)
	}

	updated := desc.Deployment.DeepCopy()
	updated.ResourceVersion = existing.ResourceVersion
	if _, err := deployments.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return StatusError, fmt.Errorf("failed to update deployment %s/%s: %w", namespace, desc.Name(), err)
	}

	a.log.Info("Updated deployment", "name", desc.Name(), "namespace", namespace)
	return StatusUpdated, nil
}

func (a *Applier) applyService(ctx context.Context, desc *Descriptor, namespace string) (ApplyStatus, error) {
	services := a.clientset.CoreV1().Services(namespace)

	_, err := services.Create(ctx, desc.Service, metav1.CreateOptions{})
	if err == nil {
		a.log.Info("Created service", "name", desc.Name(), "namespace", namespace)
		return StatusCreated, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return StatusError, fmt.Errorf("failed to create service %s/%s: %w", namespace, desc.Name(), err)
	}

	// The existing service keeps its allocated cluster IP; treat the
	// conflict as already satisfied.
	a.log.Info("Service already exists, leaving untouched", "name", desc.Name(), "namespace", namespace)
	return StatusExists, nil
}

func (a *Applier) applyIngress(ctx context.Context, desc *Descriptor, namespace string) (ApplyStatus, error) {
	ingresses := a.clientset.NetworkingV1().Ingresses(namespace)

	_, err := ingresses.Create(ctx, desc.Ingress, metav1.CreateOptions{})
	if err == nil {
		a.log.Info("Created ingress", "name", desc.Name(), "namespace", namespace)
		return StatusCreated, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return StatusError, fmt.Errorf("failed to create ingress %s/%s: %w", namespace, desc.Name(), err)
	}

	existing, err := ingresses.Get(ctx, desc.Name(), metav1.GetOptions{})
	if err != nil {
		return StatusError, fmt.Errorf("failed to read existing ingress %s/%s: %w", namespace, desc.Name(), err)
	}

	updated := desc.Ingress.DeepCopy()
	updated.ResourceVersion = existing.ResourceVersion
	if _, err := ingresses.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return StatusError, fmt.Errorf("failed to update ingress %s/%s: %w", namespace, desc.Name(), err)
	}

	a.log.Info("Updated ingress", "name", desc.Name(), "namespace", namespace)
	return StatusUpdated, nil
}
