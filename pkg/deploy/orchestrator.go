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

	"github.com/ahoma/shipmate/pkg/cluster"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/metrics"
)

// Orchestrator drives one deployment lifecycle end to end: namespace
// provisioning, ordered rollout, convergence wait, address resolution.
// Rollback is the alternate entry point keyed by correlation
// identifier.
type Orchestrator struct {
	cluster     *cluster.Client
	provisioner *NamespaceProvisioner
	rollout     *RolloutController
	resolver    *AddressResolver
	rollback    *RollbackController
	collector   *metrics.Collector
	log         *logging.Logger
}

// NewOrchestrator creates a deployment orchestrator over the cluster
// handle. The handle may be unavailable; every operation checks it
// before touching the cluster, so an orchestrator built without cluster
// access answers requests with the unavailability reason instead of
// refusing to start. The collector may be nil, in which case no metrics
// are recorded.
func NewOrchestrator(clusterClient *cluster.Client, log *logging.Logger, collector *metrics.Collector) *Orchestrator {
	clientset, _ := clusterClient.Clientset()
	return &Orchestrator{
		cluster:     clusterClient,
		provisioner: NewNamespaceProvisioner(clientset, log),
		rollout:     NewRolloutController(clientset, log),
		resolver:    NewAddressResolver(clientset, log),
		rollback:    NewRollbackController(clientset, log),
		collector:   collector,
		log:         log.WithName("orchestrator"),
	}
}

// clusterReady reports whether the handle grants cluster access,
// wrapping cluster.ErrUnavailable with the reason when it does not.
func (o *Orchestrator) clusterReady() error {
	_, err := o.cluster.Clientset()
	return err
}

// SetReadinessWindow overrides the convergence wait parameters
func (o *Orchestrator) SetReadinessWindow(timeout, pollInterval time.Duration) {
	if timeout > 0 {
		o.rollout.Timeout = timeout
	}
	if pollInterval > 0 {
		o.rollout.PollInterval = pollInterval
	}
}

// DeployParams are the structured inputs for one deploy invocation
type DeployParams struct {
	App         string
	Namespace   string
	Environment string
	Image       string
	Workload    *WorkloadSpec
	Service     *ServiceSpec
	Ingress     *IngressSpec
}

// DeployResult is the outcome of one deploy invocation
type DeployResult struct {
	DeployID      string    `json:"deployment_id"`
	Status        string    `json:"status"`
	Environment   string    `json:"environment"`
	Namespace     string    `json:"namespace"`
	URL           string    `json:"deployment_url"`
	Resources     []Outcome `json:"deployed_resources"`
	RolloutStatus string    `json:"rollout_status"`
}

// Deploy mints a correlation identifier, ensures the namespace, applies
// the resource set in order, waits for the deployment to converge, and
// resolves the reachable address. Cluster errors other than the
// applier's handled conflicts are fatal, as is readiness-deadline
// expiry; partial success is never reported as success.
func (o *Orchestrator) Deploy(ctx context.Context, params DeployParams) (*DeployResult, error) {
	if err := o.clusterReady(); err != nil {
		o.collector.RecordDeploy(params.Environment, "unavailable")
		return nil, err
	}

	deployID := NewDeployID()
	log := o.log.WithDeployment(deployID, params.Namespace, params.App)

	set, err := BuildResourceSet(params.App, params.Namespace, params.Image, params.Workload, params.Service, params.Ingress)
	if err != nil {
		o.collector.RecordDeploy(params.Environment, "invalid")
		return nil, err
	}

	if err := o.provisioner.Ensure(ctx, params.Namespace); err != nil {
		o.collector.RecordDeploy(params.Environment, "error")
		return nil, err
	}

	outcomes, err := o.rollout.Rollout(ctx, set, params.Namespace, deployID)
	if err != nil {
		o.collector.RecordDeploy(params.Environment, "error")
		return nil, err
	}

	rolloutStatus := "skipped"
	if set.Deployment != nil {
		start := time.Now()
		if err := o.rollout.AwaitReady(ctx, set.Deployment.Name, params.Namespace); err != nil {
			o.collector.RecordDeploy(params.Environment, "timeout")
			return nil, err
		}
		o.collector.ObserveRolloutDuration(params.Environment, time.Since(start))
		rolloutStatus = "ready"
	}

	url := o.resolver.Resolve(ctx, params.App, params.Namespace)
	log.Info("Deploy complete", "url", url, "rollout_status", rolloutStatus)
	o.collector.RecordDeploy(params.Environment, "success")

	return &DeployResult{
		DeployID:      deployID,
		Status:        "deployed",
		Environment:   params.Environment,
		Namespace:     params.Namespace,
		URL:           url,
		Resources:     outcomes,
		RolloutStatus: rolloutStatus,
	}, nil
}

// Rollback reverts the deployment matching the correlation identifier
// and waits for the rolled-back revision to converge, reusing the
// rollout controller's readiness wait.
func (o *Orchestrator) Rollback(ctx context.Context, deployID, namespace string) error {
	if err := o.clusterReady(); err != nil {
		o.collector.RecordRollback("unavailable")
		return err
	}

	deployment, err := o.rollback.FindByDeployID(ctx, deployID, namespace)
	if err != nil {
		o.collector.RecordRollback("not_found")
		return err
	}

	if err := o.rollback.Rollback(ctx, deployment); err != nil {
		o.collector.RecordRollback("error")
		return err
	}

	if err := o.rollout.AwaitReady(ctx, deployment.Name, namespace); err != nil {
		o.collector.RecordRollback("timeout")
		return fmt.Errorf("rollback of deployment_id %s applied but did not converge: %w", deployID, err)
	}

	o.collector.RecordRollback("success")
	return nil
}

// FindByDeployID exposes correlation-identifier lookup for monitoring
// attachment.
func (o *Orchestrator) FindByDeployID(ctx context.Context, deployID, namespace string) (string, error) {
	if err := o.clusterReady(); err != nil {
		return "", err
	}

	deployment, err := o.rollback.FindByDeployID(ctx, deployID, namespace)
	if err != nil {
		return "", err
	}

	app := deployment.Labels[LabelApp]
	if app == "" {
		app = deployment.Name
	}
	return app, nil
}

// ResolveURL exposes address resolution for callers outside the deploy
// flow.
func (o *Orchestrator) ResolveURL(ctx context.Context, app, namespace string) string {
	return o.resolver.Resolve(ctx, app, namespace)
}
