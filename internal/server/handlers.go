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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahoma/shipmate/pkg/cluster"
	"github.com/ahoma/shipmate/pkg/deploy"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/monitor"
	"github.com/ahoma/shipmate/pkg/pipeline"
)

// DeployService is the orchestration surface the API needs. Satisfied
// by deploy.Orchestrator.
type DeployService interface {
	Deploy(ctx context.Context, params deploy.DeployParams) (*deploy.DeployResult, error)
	Rollback(ctx context.Context, deployID, namespace string) error
	FindByDeployID(ctx context.Context, deployID, namespace string) (string, error)
	ResolveURL(ctx context.Context, app, namespace string) string
}

// CampaignService runs monitoring campaigns. Satisfied by
// monitor.Runner.
type CampaignService interface {
	Run(ctx context.Context, app, namespace, probeURL string, duration time.Duration) []monitor.Sample
}

// PipelineService runs the full delivery pipeline. Satisfied by
// pipeline.Pipeline.
type PipelineService interface {
	Run(ctx context.Context, change pipeline.Change) (*pipeline.Result, error)
}

// APIDefaults are the request-default tunables from configuration.
type APIDefaults struct {
	Environment      string
	MonitorDuration  time.Duration
	DashboardBaseURL string
}

// API serves the /api/v1 routes.
type API struct {
	deployer DeployService
	runner   CampaignService
	pipe     PipelineService
	defaults APIDefaults
	log      *logging.Logger
}

// NewAPI creates the API handler set. pipe may be nil; the pipeline
// route then reports the capability as unconfigured.
func NewAPI(deployer DeployService, runner CampaignService, pipe PipelineService, defaults APIDefaults, log *logging.Logger) *API {
	if defaults.Environment == "" {
		defaults.Environment = "staging"
	}
	if defaults.MonitorDuration <= 0 {
		defaults.MonitorDuration = 300 * time.Second
	}
	return &API{
		deployer: deployer,
		runner:   runner,
		pipe:     pipe,
		defaults: defaults,
		log:      log.WithName("api"),
	}
}

// KubernetesConfigRequest carries the optional per-resource overrides
// of a deploy request.
type KubernetesConfigRequest struct {
	Deployment *deploy.WorkloadSpec `json:"deployment,omitempty"`
	Service    *deploy.ServiceSpec  `json:"service,omitempty"`
	Ingress    *deploy.IngressSpec  `json:"ingress,omitempty"`
}

// DeployRequest is the input shape of POST /api/v1/deploy.
type DeployRequest struct {
	Repository       string                   `json:"repository" binding:"required"`
	ImageTag         string                   `json:"image_tag" binding:"required"`
	Environment      string                   `json:"environment"`
	Namespace        string                   `json:"namespace"`
	KubernetesConfig *KubernetesConfigRequest `json:"kubernetes_config"`
}

// DeployHandler implements POST /api/v1/deploy
func (a *API) DeployHandler(c *gin.Context) {
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid deploy request: %v", err)})
		return
	}

	environment := req.Environment
	if environment == "" {
		environment = a.defaults.Environment
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = environment
	}

	params := deploy.DeployParams{
		App:         deploy.AppNameFromRepository(req.Repository),
		Namespace:   namespace,
		Environment: environment,
		Image:       req.ImageTag,
	}
	if req.KubernetesConfig != nil {
		params.Workload = req.KubernetesConfig.Deployment
		params.Service = req.KubernetesConfig.Service
		params.Ingress = req.KubernetesConfig.Ingress
	}

	result, err := a.deployer.Deploy(c.Request.Context(), params)
	if err != nil {
		a.log.Error(err, "Deploy failed", "repository", req.Repository, "namespace", namespace)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// MonitorRequest is the input shape of POST /api/v1/monitor.
type MonitorRequest struct {
	DeploymentID       string `json:"deployment_id" binding:"required"`
	Environment        string `json:"environment"`
	Namespace          string `json:"namespace"`
	MonitoringDuration int    `json:"monitoring_duration"`
}

// MonitorResponse is the output shape of POST /api/v1/monitor.
type MonitorResponse struct {
	DeploymentID     string          `json:"deployment_id"`
	MonitoringStatus string          `json:"monitoring_status"`
	Duration         int             `json:"duration"`
	HealthStatus     string          `json:"health_status"`
	Metrics          monitor.Metrics `json:"metrics"`
	Alerts           []string        `json:"alerts"`
	Recommendations  []string        `json:"recommendations"`
	DashboardURL     string          `json:"dashboard_url"`
}

// MonitorHandler implements POST /api/v1/monitor
func (a *API) MonitorHandler(c *gin.Context) {
	var req MonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid monitor request: %v", err)})
		return
	}

	environment := req.Environment
	if environment == "" {
		environment = a.defaults.Environment
	}
	namespace := req.Namespace
	if namespace == "" {
		namespace = environment
	}
	duration := a.defaults.MonitorDuration
	if req.MonitoringDuration > 0 {
		duration = time.Duration(req.MonitoringDuration) * time.Second
	}

	ctx := c.Request.Context()
	app, err := a.deployer.FindByDeployID(ctx, req.DeploymentID, namespace)
	if err != nil {
		a.log.Error(err, "Monitor target lookup failed", "deployment_id", req.DeploymentID, "namespace", namespace)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	probeURL := a.deployer.ResolveURL(ctx, app, namespace)
	samples := a.runner.Run(ctx, app, namespace, probeURL, duration)
	report := monitor.Summarize(samples)

	c.JSON(http.StatusOK, MonitorResponse{
		DeploymentID:     req.DeploymentID,
		MonitoringStatus: "completed",
		Duration:         int(duration.Seconds()),
		HealthStatus:     string(report.OverallHealth),
		Metrics:          report.Metrics,
		Alerts:           report.Alerts,
		Recommendations:  report.Recommendations,
		DashboardURL:     a.dashboardURL(app, namespace),
	})
}

// RollbackRequest is the input shape of POST /api/v1/rollback.
type RollbackRequest struct {
	DeploymentID string `json:"deployment_id" binding:"required"`
	Namespace    string `json:"namespace"`
}

// RollbackHandler implements POST /api/v1/rollback
func (a *API) RollbackHandler(c *gin.Context) {
	var req RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid rollback request: %v", err)})
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = a.defaults.Environment
	}

	if err := a.deployer.Rollback(c.Request.Context(), req.DeploymentID, namespace); err != nil {
		a.log.Error(err, "Rollback failed", "deployment_id", req.DeploymentID, "namespace", namespace)
		c.JSON(statusForError(err), gin.H{
			"status":  "failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("deployment %s rolled back to previous revision", req.DeploymentID),
	})
}

// PipelineHandler implements POST /api/v1/pipeline
func (a *API) PipelineHandler(c *gin.Context) {
	if a.pipe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline is not configured"})
		return
	}

	var change pipeline.Change
	if err := c.ShouldBindJSON(&change); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid pipeline request: %v", err)})
		return
	}
	if change.Repository == "" || change.Ref == "" || change.ImageTag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repository, ref, and image_tag are required"})
		return
	}

	result, err := a.pipe.Run(c.Request.Context(), change)
	if err != nil {
		a.log.Error(err, "Pipeline run failed", "repository", change.Repository, "ref", change.Ref)
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *API) dashboardURL(app, namespace string) string {
	if a.defaults.DashboardBaseURL == "" {
		return fmt.Sprintf("http://grafana.%s.svc.cluster.local/d/shipmate?var-app=%s", namespace, app)
	}
	return fmt.Sprintf("%s/d/shipmate?var-app=%s&var-namespace=%s", a.defaults.DashboardBaseURL, app, namespace)
}

// statusForError maps the error taxonomy to HTTP statuses: lookup
// misses are 404, an unavailable cluster handle is 503, everything else
// is the caller-opaque 500.
func statusForError(err error) int {
	var notFound *deploy.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, cluster.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
