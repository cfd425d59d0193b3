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

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/logging"
)

// NamespaceProvisioner ensures the target namespace exists before any
// resource is applied into it. Idempotent; safe to call per invocation.
type NamespaceProvisioner struct {
	clientset kubernetes.Interface
	log       *logging.Logger
}

// NewNamespaceProvisioner creates a namespace provisioner
func NewNamespaceProvisioner(clientset kubernetes.Interface, log *logging.Logger) *NamespaceProvisioner {
	return &NamespaceProvisioner{
		clientset: clientset,
		log:       log.WithName("namespace"),
	}
}

// Ensure reads the namespace and creates it when absent. Read failures
// other than not-found propagate.
func (p *NamespaceProvisioner) Ensure(ctx context.Context, namespace string) error {
	_, err := p.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to read namespace %s: %w", namespace, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "shipmate",
				"app.kubernetes.io/component":  "environment",
				"app.kubernetes.io/managed-by": ManagedByValue,
			},
		},
	}

	if _, err := p.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		// Lost a create race with a concurrent invocation; the namespace
		// is there, which is all that matters.
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create namespace %s: %w", namespace, err)
	}

	p.log.Info("Created namespace", "namespace", namespace)
	return nil
}
