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
	"sort"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/logging"
)

// revisionAnnotation is set by the deployment controller on both the
// deployment and its replica sets.
const revisionAnnotation = "deployment.kubernetes.io/revision"

// NotFoundError reports that no deployment carries the given
// correlation identifier. Surfaced rather than no-op'd so an operator
// mistake (wrong id, wrong namespace) is visible.
type NotFoundError struct {
	DeployID  string
	Namespace string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no deployment found for deployment_id %s in namespace %s", e.DeployID, e.Namespace)
}

// RollbackController locates a deployment by correlation identifier and
// reverts it to its prior revision. It does not verify convergence of
// the rolled-back revision; callers reuse the rollout controller's
// readiness wait for that.
type RollbackController struct {
	clientset kubernetes.Interface
	log       *logging.Logger
}

// NewRollbackController creates a rollback controller
func NewRollbackController(clientset kubernetes.Interface, log *logging.Logger) *RollbackController {
	return &RollbackController{
		clientset: clientset,
		log:       log.WithName("rollback"),
	}
}

// FindByDeployID looks up the deployment stamped with the correlation
// identifier. When several match the newest by creation timestamp wins;
// the extras are logged since steady state promises exactly one match.
func (c *RollbackController) FindByDeployID(ctx context.Context, deployID, namespace string) (*appsv1.Deployment, error) {
	selector := labels.Set{LabelDeployID: deployID}.AsSelector().String()

	list, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments for deployment_id %s in %s: %w", deployID, namespace, err)
	}
	if len(list.Items) == 0 {
		return nil, &NotFoundError{DeployID: deployID, Namespace: namespace}
	}

	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		return items[j].CreationTimestamp.Before(&items[i].CreationTimestamp)
	})

	if len(items) > 1 {
		extra := make([]string, 0, len(items)-1)
		for _, d := range items[1:] {
			extra = append(extra, d.Name)
		}
		c.log.Info("Multiple deployments share a deployment_id, using newest",
			"deployment_id", deployID, "namespace", namespace, "chosen", items[0].Name, "ignored", extra)
	}

	return &items[0], nil
}

// Rollback reverts the given deployment's pod template to the previous
// revision's, following what a rollout undo does: pick the replica set
// with the highest revision below the current one and re-apply its
// template. The deployment comes from FindByDeployID so lookup and
// revert see the same object under concurrent churn.
func (c *RollbackController) Rollback(ctx context.Context, deployment *appsv1.Deployment) error {
	namespace := deployment.Namespace
	deployID := deployment.Labels[LabelDeployID]

	previous, err := c.previousRevision(ctx, deployment, namespace)
	if err != nil {
		return fmt.Errorf("rollback of %s (deployment_id %s): %w", deployment.Name, deployID, err)
	}

	updated := deployment.DeepCopy()
	updated.Spec.Template = *previous.Spec.Template.DeepCopy()
	// The hash label belongs to the replica set, not the deployment
	// template; carrying it over would pin new pods to the old set.
	delete(updated.Spec.Template.Labels, appsv1.DefaultDeploymentUniqueLabelKey)

	if _, err := c.clientset.AppsV1().Deployments(namespace).Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to roll back deployment %s/%s (deployment_id %s): %w", namespace, deployment.Name, deployID, err)
	}

	c.log.Info("Rolled back deployment",
		"name", deployment.Name, "namespace", namespace, "deployment_id", deployID,
		"to_revision", previous.Annotations[revisionAnnotation])
	return nil
}

// previousRevision finds the replica set holding the revision directly
// below the deployment's current one.
func (c *RollbackController) previousRevision(ctx context.Context, deployment *appsv1.Deployment, namespace string) (*appsv1.ReplicaSet, error) {
	selector, err := metav1.LabelSelectorAsSelector(deployment.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("invalid deployment selector: %w", err)
	}

	list, err := c.clientset.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list replica sets: %w", err)
	}

	current := revisionOf(deployment.Annotations)

	var best *appsv1.ReplicaSet
	bestRevision := int64(-1)
	for i := range list.Items {
		rs := &list.Items[i]
		if !ownedBy(rs, deployment) {
			continue
		}
		revision := revisionOf(rs.Annotations)
		if revision >= current {
			continue
		}
		if revision > bestRevision {
			best = rs
			bestRevision = revision
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no previous revision to roll back to (current revision %d)", current)
	}
	return best, nil
}

func revisionOf(annotations map[string]string) int64 {
	v, err := strconv.ParseInt(annotations[revisionAnnotation], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func ownedBy(rs *appsv1.ReplicaSet, deployment *appsv1.Deployment) bool {
	for _, ref := range rs.OwnerReferences {
		if ref.Kind == "Deployment" && ref.Name == deployment.Name {
			return true
		}
	}
	return false
}
