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

package di

import (
	"context"
	"fmt"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/internal/server"
	"github.com/ahoma/shipmate/pkg/analysis"
	"github.com/ahoma/shipmate/pkg/cluster"
	"github.com/ahoma/shipmate/pkg/deploy"
	"github.com/ahoma/shipmate/pkg/gitrepo"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/metrics"
	"github.com/ahoma/shipmate/pkg/monitor"
	"github.com/ahoma/shipmate/pkg/notify"
	"github.com/ahoma/shipmate/pkg/pipeline"
)

// ServiceRegistry registers all Shipmate services in dependency order
type ServiceRegistry struct {
	container *Container
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(container *Container) *ServiceRegistry {
	return &ServiceRegistry{container: container}
}

// RegisterAll registers every service the server graph needs
func (r *ServiceRegistry) RegisterAll() error {
	registrations := []func() error{
		r.registerLogging,
		r.registerMetrics,
		r.registerCluster,
		r.registerDeploy,
		r.registerMonitoring,
		r.registerPipeline,
		r.registerServer,
	}

	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ServiceRegistry) registerLogging() error {
	return r.container.Provide(func(cfg *config.Configuration) (*logging.Logger, error) {
		return logging.NewLogger(&logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
}

func (r *ServiceRegistry) registerMetrics() error {
	return r.container.Provide(metrics.NewCollector)
}

// registerCluster provides the capability handle only; consumers that
// need cluster access check it per operation, so an unreachable cluster
// degrades the server to 503s instead of keeping it from starting.
func (r *ServiceRegistry) registerCluster() error {
	return r.container.Provide(func(cfg *config.Configuration) *cluster.Client {
		return cluster.New(&cluster.Config{
			Kubeconfig: cfg.Kubernetes.Kubeconfig,
			QPS:        cfg.Kubernetes.QPS,
			Burst:      cfg.Kubernetes.Burst,
			Timeout:    cfg.Kubernetes.Timeout,
			UserAgent:  cfg.Kubernetes.UserAgent,
		})
	})
}

func (r *ServiceRegistry) registerDeploy() error {
	return r.container.Provide(func(cfg *config.Configuration, clusterClient *cluster.Client, log *logging.Logger, collector *metrics.Collector) *deploy.Orchestrator {
		orchestrator := deploy.NewOrchestrator(clusterClient, log, collector)
		orchestrator.SetReadinessWindow(cfg.Deploy.ReadinessTimeout, cfg.Deploy.ReadinessPollInterval)
		return orchestrator
	})
}

func (r *ServiceRegistry) registerMonitoring() error {
	if err := r.container.Provide(func(cfg *config.Configuration, clusterClient *cluster.Client, log *logging.Logger, collector *metrics.Collector) *monitor.Runner {
		runner := monitor.NewRunner(clusterClient, log, collector)
		if cfg.Monitoring.ProbeTimeout > 0 {
			runner.ProbeTimeout = cfg.Monitoring.ProbeTimeout
		}
		return runner
	}); err != nil {
		return err
	}

	if err := r.container.Provide(func(cfg *config.Configuration, log *logging.Logger) *notify.WebhookNotifier {
		return notify.NewWebhookNotifier(cfg.Notifications, log)
	}); err != nil {
		return err
	}

	return r.container.Provide(func(cfg *config.Configuration, clusterClient *cluster.Client, runner *monitor.Runner, notifier *notify.WebhookNotifier, collector *metrics.Collector, log *logging.Logger) *monitor.Scheduler {
		// With an unavailable handle the resolver degrades to the
		// synthesized cluster-DNS tier.
		clientset, _ := clusterClient.Clientset()
		resolver := deploy.NewAddressResolver(clientset, log)
		scheduler := monitor.NewScheduler(runner, resolver, collector, log, cfg.Monitoring.Schedule)
		scheduler.Sink = notifier
		return scheduler
	})
}

func (r *ServiceRegistry) registerPipeline() error {
	if err := r.container.Provide(func(cfg *config.Configuration) (*gitrepo.Client, error) {
		return gitrepo.NewClient(context.Background(), cfg.Pipeline.GitHubToken, cfg.Pipeline.GitHubBaseURL)
	}); err != nil {
		return err
	}

	if err := r.container.Provide(func(cfg *config.Configuration, log *logging.Logger) *analysis.Client {
		return analysis.NewClient(cfg.Pipeline.AnalysisEndpoint, cfg.Pipeline.AnalysisAPIKey, cfg.Pipeline.AnalysisTimeout, log)
	}); err != nil {
		return err
	}

	return r.container.Provide(func(cfg *config.Configuration, source *gitrepo.Client, analyzer *analysis.Client, orchestrator *deploy.Orchestrator, runner *monitor.Runner, notifier *notify.WebhookNotifier, collector *metrics.Collector, log *logging.Logger) *pipeline.Pipeline {
		p := pipeline.New(source, analyzer, orchestrator, runner, notifier, collector, log)
		p.MonitorDuration = cfg.Monitoring.DefaultDuration
		return p
	})
}

func (r *ServiceRegistry) registerServer() error {
	if err := r.container.Provide(func(client *cluster.Client) *server.HealthChecker {
		return server.NewHealthChecker(client)
	}); err != nil {
		return err
	}

	if err := r.container.Provide(server.NewMetricsServer); err != nil {
		return err
	}

	if err := r.container.Provide(func(cfg *config.Configuration, orchestrator *deploy.Orchestrator, runner *monitor.Runner, p *pipeline.Pipeline, log *logging.Logger) *server.API {
		return server.NewAPI(orchestrator, runner, p, server.APIDefaults{
			Environment:      cfg.Deploy.DefaultEnvironment,
			MonitorDuration:  cfg.Monitoring.DefaultDuration,
			DashboardBaseURL: cfg.Monitoring.DashboardBaseURL,
		}, log)
	}); err != nil {
		return err
	}

	return r.container.Provide(func(cfg *config.Configuration, health *server.HealthChecker, metricsServer *server.MetricsServer, api *server.API, log *logging.Logger) (*server.Server, error) {
		if health == nil || metricsServer == nil || api == nil {
			return nil, fmt.Errorf("server components not fully constructed")
		}
		return server.NewServer(cfg.Server, health, metricsServer, api, log), nil
	})
}
