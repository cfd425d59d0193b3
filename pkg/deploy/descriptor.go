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

// Package deploy implements the deployment lifecycle orchestrator: it
// applies a declarative resource set (deployment, service, ingress) to a
// cluster idempotently, waits for convergence, resolves a reachable
// address for the result, and can roll a deployment back to its prior
// revision via the correlation identifier stamped on every resource.
package deploy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
)

// Kind identifies the resource type of a descriptor
type Kind string

const (
	KindDeployment Kind = "Deployment"
	KindService    Kind = "Service"
	KindIngress    Kind = "Ingress"
)

// ApplyStatus is the per-resource result of an apply
type ApplyStatus string

const (
	StatusCreated ApplyStatus = "created"
	StatusUpdated ApplyStatus = "updated"
	StatusExists  ApplyStatus = "exists"
	StatusError   ApplyStatus = "error"
)

// Labels stamped on every managed resource
const (
	LabelApp       = "app"
	LabelDeployID  = "shipmate.io/deploy-id"
	LabelManagedBy = "app.kubernetes.io/managed-by"

	ManagedByValue = "shipmate"
)

// NewDeployID mints a correlation identifier for one deploy invocation.
// It is stamped as a label on every resource the invocation touches and
// is the sole lookup key for rollback and monitoring attachment.
func NewDeployID() string {
	return fmt.Sprintf("deploy-%s", uuid.NewString()[:8])
}

// Descriptor is a named, typed resource document submitted to the
// applier. Exactly one of the object fields matching Kind is set.
type Descriptor struct {
	Kind       Kind
	Deployment *appsv1.Deployment
	Service    *corev1.Service
	Ingress    *networkingv1.Ingress
}

// Name returns the resource name of the wrapped object
func (d *Descriptor) Name() string {
	switch d.Kind {
	case KindDeployment:
		return d.Deployment.Name
	case KindService:
		return d.Service.Name
	case KindIngress:
		return d.Ingress.Name
	}
	return ""
}

// stamp injects the correlation and managed-by labels. For deployments
// the pod template carries them too so that pods are attributable to
// the invocation that created them.
func (d *Descriptor) stamp(deployID string) {
	labels := map[string]string{
		LabelDeployID:  deployID,
		LabelManagedBy: ManagedByValue,
	}

	switch d.Kind {
	case KindDeployment:
		mergeLabels(&d.Deployment.ObjectMeta.Labels, labels)
		mergeLabels(&d.Deployment.Spec.Template.ObjectMeta.Labels, labels)
	case KindService:
		mergeLabels(&d.Service.ObjectMeta.Labels, labels)
	case KindIngress:
		mergeLabels(&d.Ingress.ObjectMeta.Labels, labels)
	}
}

func mergeLabels(target *map[string]string, labels map[string]string) {
	if *target == nil {
		*target = make(map[string]string, len(labels))
	}
	for k, v := range labels {
		(*target)[k] = v
	}
}

// ResourceSet is the ordered resource graph for one deploy invocation.
// Absent entries are skipped; apply order is deployment, service,
// ingress because later manifests reference earlier ones by name.
type ResourceSet struct {
	Deployment *appsv1.Deployment
	Service    *corev1.Service
	Ingress    *networkingv1.Ingress
}

// Descriptors returns the present resources in apply order
func (s *ResourceSet) Descriptors() []*Descriptor {
	var out []*Descriptor
	if s.Deployment != nil {
		out = append(out, &Descriptor{Kind: KindDeployment, Deployment: s.Deployment})
	}
	if s.Service != nil {
		out = append(out, &Descriptor{Kind: KindService, Service: s.Service})
	}
	if s.Ingress != nil {
		out = append(out, &Descriptor{Kind: KindIngress, Ingress: s.Ingress})
	}
	return out
}

// Outcome is the per-resource record of one apply
type Outcome struct {
	Kind   Kind        `json:"kind"`
	Name   string      `json:"name"`
	Status ApplyStatus `json:"status"`
}

// ServiceName returns the conventional service name for an app. The
// address resolver's cluster-local DNS fallback relies on this
// convention holding.
func ServiceName(app string) string {
	return app + "-service"
}

// IngressName returns the conventional ingress name for an app
func IngressName(app string) string {
	return app + "-ingress"
}

// AppNameFromRepository derives the workload name from an "owner/name"
// repository. Dots are replaced since they are not valid in resource
// names.
func AppNameFromRepository(repository string) string {
	name := repository
	if idx := strings.LastIndex(repository, "/"); idx >= 0 {
		name = repository[idx+1:]
	}
	return strings.ToLower(strings.ReplaceAll(name, ".", "-"))
}
