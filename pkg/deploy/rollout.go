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
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/logging"
)

const (
	// DefaultReadinessTimeout bounds the post-apply convergence wait
	DefaultReadinessTimeout = 300 * time.Second

	// DefaultPollInterval is the pause between readiness polls
	DefaultPollInterval = 5 * time.Second
)

// RolloutController applies the ordered resource set and waits for the
// workload to converge. Each resource is stamped with the correlation
// identifier and managed-by label before it reaches the applier.
type RolloutController struct {
	applier   *Applier
	clientset kubernetes.Interface
	log       *logging.Logger

	// PollInterval and Timeout govern AwaitReady. Zero values fall back
	// to the defaults.
	PollInterval time.Duration
	Timeout      time.Duration
}

// NewRolloutController creates a rollout controller
func NewRolloutController(clientset kubernetes.Interface, log *logging.Logger) *RolloutController {
	return &RolloutController{
		applier:      NewApplier(clientset, log),
		clientset:    clientset,
		log:          log.WithName("rollout"),
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultReadinessTimeout,
	}
}

// Rollout applies the resource set in fixed order: deployment, then
// service, then ingress. Each resource is fully submitted before the
// next because later manifests reference earlier ones by name. On apply
// failure the error outcome is recorded and the failure propagates; the
// partial outcome list reflects everything attempted.
func (r *RolloutController) Rollout(ctx context.Context, set *ResourceSet, namespace, deployID string) ([]Outcome, error) {
	var outcomes []Outcome

	for _, desc := range set.Descriptors() {
		desc.stamp(deployID)

		status, err := r.applier.Apply(ctx, desc, namespace)
		outcomes = append(outcomes, Outcome{Kind: desc.Kind, Name: desc.Name(), Status: status})
		if err != nil {
			return outcomes, fmt.Errorf("rollout of %s %s failed (deployment_id %s): %w", desc.Kind, desc.Name(), deployID, err)
		}
	}

	return outcomes, nil
}

// AwaitReady polls the deployment until readyReplicas equals a positive
// desired count or the deadline expires. Read errors during polling are
// transient: they are logged and polling continues; only the deadline
// terminates the wait. The deadline is measured from this call, not
// from the apply phase.
func (r *RolloutController) AwaitReady(ctx context.Context, name, namespace string) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultReadinessTimeout
	}

	start := time.Now()
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		deployment, err := r.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			r.log.Info("Transient error polling deployment readiness", "name", name, "namespace", namespace, "error", err.Error())
			return false, nil
		}

		desired := int32(0)
		if deployment.Spec.Replicas != nil {
			desired = *deployment.Spec.Replicas
		}
		ready := deployment.Status.ReadyReplicas

		r.log.V(1).Info("Polled deployment readiness", "name", name, "ready", ready, "desired", desired)
		return desired > 0 && ready == desired, nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s/%s did not become ready within %s (waited %s): %w",
			namespace, name, timeout, time.Since(start).Round(time.Millisecond), err)
	}

	r.log.Info("Deployment ready", "name", name, "namespace", namespace, "elapsed", time.Since(start).Round(time.Millisecond).String())
	return nil
}
