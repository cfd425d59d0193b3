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

// Package pipeline sequences the delivery stages for one change:
// review, test generation, build-risk prediction, deploy, and
// monitoring attachment. Image build and push happen outside Shipmate;
// the pipeline receives a pushed image tag.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ahoma/shipmate/pkg/analysis"
	"github.com/ahoma/shipmate/pkg/deploy"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/metrics"
	"github.com/ahoma/shipmate/pkg/monitor"
)

// Stage names, in execution order.
const (
	StageReview    = "review"
	StageTestGen   = "test_generation"
	StageBuildRisk = "build_risk"
	StageDeploy    = "deploy"
	StageMonitor   = "monitor"
)

// Stage result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// buildRiskCeiling stops the pipeline before deploying a change the
// risk model considers more likely than not to break the build.
const buildRiskCeiling = 0.8

// SourceClient fetches change context. Satisfied by gitrepo.Client.
type SourceClient interface {
	Diff(ctx context.Context, repository, ref string) (string, error)
}

// Analyzer runs the LLM-backed stages. Satisfied by analysis.Client.
type Analyzer interface {
	Configured() bool
	ReviewChange(ctx context.Context, repository, ref, diff string) (analysis.Review, error)
	GenerateTests(ctx context.Context, repository, diff string) (analysis.GeneratedTests, error)
	PredictBuildRisk(ctx context.Context, repository, diff string) (analysis.BuildRisk, error)
}

// Deployer executes the deploy stage. Satisfied by deploy.Orchestrator.
type Deployer interface {
	Deploy(ctx context.Context, params deploy.DeployParams) (*deploy.DeployResult, error)
}

// CampaignRunner attaches monitoring after a deploy. Satisfied by
// monitor.Runner.
type CampaignRunner interface {
	Run(ctx context.Context, app, namespace, probeURL string, duration time.Duration) []monitor.Sample
}

// StageNotifier receives per-stage outcomes. Satisfied by
// notify.WebhookNotifier; may be nil.
type StageNotifier interface {
	NotifyStage(ctx context.Context, repository, stage, result, detail string)
}

// Change describes one change entering the pipeline.
type Change struct {
	Repository  string `json:"repository"`
	Ref         string `json:"ref"`
	ImageTag    string `json:"image_tag"`
	Environment string `json:"environment"`

	Workload *deploy.WorkloadSpec `json:"workload,omitempty"`
	Service  *deploy.ServiceSpec  `json:"service,omitempty"`
	Ingress  *deploy.IngressSpec  `json:"ingress,omitempty"`
}

// StageResult records the outcome of one stage.
type StageResult struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one pipeline run. Deploy is set only when
// the deploy stage ran, Report only when monitoring attached
// synchronously.
type Result struct {
	Repository string               `json:"repository"`
	Ref        string               `json:"ref"`
	Stages     []StageResult        `json:"stages"`
	Deploy     *deploy.DeployResult `json:"deploy,omitempty"`
	Review     *analysis.Review     `json:"review,omitempty"`
	Risk       *analysis.BuildRisk  `json:"risk,omitempty"`
	Report     *monitor.Report      `json:"monitoring_report,omitempty"`
}

// Pipeline drives the stages in order, stopping at the first stage
// error. Analysis stages are skipped, not failed, when no analysis
// endpoint is configured.
type Pipeline struct {
	source    SourceClient
	analyzer  Analyzer
	deployer  Deployer
	runner    CampaignRunner
	notifier  StageNotifier
	collector *metrics.Collector
	log       *logging.Logger

	// MonitorDuration bounds the attached campaign. Zero disables the
	// monitoring stage.
	MonitorDuration time.Duration
}

// New creates a pipeline. notifier and collector may be nil.
func New(source SourceClient, analyzer Analyzer, deployer Deployer, runner CampaignRunner, notifier StageNotifier, collector *metrics.Collector, log *logging.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		analyzer:  analyzer,
		deployer:  deployer,
		runner:    runner,
		notifier:  notifier,
		collector: collector,
		log:       log.WithName("pipeline"),
	}
}

// Run executes the pipeline for one change. The returned Result always
// carries an entry per attempted stage; the error mirrors the failing
// stage's detail.
func (p *Pipeline) Run(ctx context.Context, change Change) (*Result, error) {
	result := &Result{
		Repository: change.Repository,
		Ref:        change.Ref,
		Stages:     []StageResult{},
	}
	log := p.log.WithValues("repository", change.Repository, "ref", change.Ref)
	log.Info("Starting pipeline run")

	diff, err := p.fetchDiff(ctx, change)
	if err != nil {
		p.record(ctx, result, change, StageReview, StatusError, err.Error())
		return result, err
	}

	if err := p.runReview(ctx, change, diff, result); err != nil {
		return result, err
	}
	if err := p.runTestGen(ctx, change, diff, result); err != nil {
		return result, err
	}
	if err := p.runBuildRisk(ctx, change, diff, result); err != nil {
		return result, err
	}
	if err := p.runDeploy(ctx, change, result); err != nil {
		return result, err
	}
	p.runMonitor(ctx, change, result)

	log.Info("Pipeline run complete", "stages", len(result.Stages))
	return result, nil
}

// fetchDiff is best effort without a source client: analysis stages
// then operate on an empty diff.
func (p *Pipeline) fetchDiff(ctx context.Context, change Change) (string, error) {
	if p.source == nil {
		return "", nil
	}
	diff, err := p.source.Diff(ctx, change.Repository, change.Ref)
	if err != nil {
		return "", fmt.Errorf("failed to fetch diff for %s at %s: %w", change.Repository, change.Ref, err)
	}
	return diff, nil
}

func (p *Pipeline) runReview(ctx context.Context, change Change, diff string, result *Result) error {
	if p.analyzer == nil || !p.analyzer.Configured() {
		p.record(ctx, result, change, StageReview, StatusSkipped, "no analysis endpoint configured")
		return nil
	}

	review, err := p.analyzer.ReviewChange(ctx, change.Repository, change.Ref, diff)
	if err != nil {
		p.record(ctx, result, change, StageReview, StatusError, err.Error())
		return fmt.Errorf("review stage failed: %w", err)
	}
	result.Review = &review

	if review.Verdict != analysis.VerdictApprove {
		detail := fmt.Sprintf("review requested changes: %s", review.Summary)
		p.record(ctx, result, change, StageReview, StatusError, detail)
		return fmt.Errorf("review stage rejected %s at %s", change.Repository, change.Ref)
	}

	p.record(ctx, result, change, StageReview, StatusSuccess, review.Summary)
	return nil
}

func (p *Pipeline) runTestGen(ctx context.Context, change Change, diff string, result *Result) error {
	if p.analyzer == nil || !p.analyzer.Configured() {
		p.record(ctx, result, change, StageTestGen, StatusSkipped, "no analysis endpoint configured")
		return nil
	}

	tests, err := p.analyzer.GenerateTests(ctx, change.Repository, diff)
	if err != nil {
		p.record(ctx, result, change, StageTestGen, StatusError, err.Error())
		return fmt.Errorf("test generation stage failed: %w", err)
	}

	detail := "no tests generated"
	if tests.Code != "" {
		detail = fmt.Sprintf("generated %s tests", tests.Framework)
	}
	p.record(ctx, result, change, StageTestGen, StatusSuccess, detail)
	return nil
}

func (p *Pipeline) runBuildRisk(ctx context.Context, change Change, diff string, result *Result) error {
	if p.analyzer == nil || !p.analyzer.Configured() {
		p.record(ctx, result, change, StageBuildRisk, StatusSkipped, "no analysis endpoint configured")
		return nil
	}

	risk, err := p.analyzer.PredictBuildRisk(ctx, change.Repository, diff)
	if err != nil {
		p.record(ctx, result, change, StageBuildRisk, StatusError, err.Error())
		return fmt.Errorf("build risk stage failed: %w", err)
	}
	result.Risk = &risk

	if risk.Score > buildRiskCeiling {
		detail := fmt.Sprintf("build risk %.2f exceeds ceiling %.2f", risk.Score, buildRiskCeiling)
		p.record(ctx, result, change, StageBuildRisk, StatusError, detail)
		return fmt.Errorf("build risk stage blocked %s at %s: score %.2f", change.Repository, change.Ref, risk.Score)
	}

	p.record(ctx, result, change, StageBuildRisk, StatusSuccess, fmt.Sprintf("score %.2f", risk.Score))
	return nil
}

func (p *Pipeline) runDeploy(ctx context.Context, change Change, result *Result) error {
	app := deploy.AppNameFromRepository(change.Repository)
	environment := change.Environment
	if environment == "" {
		environment = "staging"
	}

	outcome, err := p.deployer.Deploy(ctx, deploy.DeployParams{
		App:         app,
		Namespace:   environment,
		Environment: environment,
		Image:       change.ImageTag,
		Workload:    change.Workload,
		Service:     change.Service,
		Ingress:     change.Ingress,
	})
	if outcome != nil {
		result.Deploy = outcome
	}
	if err != nil {
		p.record(ctx, result, change, StageDeploy, StatusError, err.Error())
		return fmt.Errorf("deploy stage failed: %w", err)
	}

	p.record(ctx, result, change, StageDeploy, StatusSuccess, outcome.DeployID)
	if dn, ok := p.notifier.(deployNotifier); ok {
		dn.NotifyDeploy(ctx, outcome.DeployID, app, environment, outcome.Status, outcome.URL)
	}
	return nil
}

// deployNotifier is the richer notification a sink may optionally
// support for successful deploys.
type deployNotifier interface {
	NotifyDeploy(ctx context.Context, deployID, app, namespace, status, url string)
}

// runMonitor attaches a bounded campaign to the fresh deploy. Campaign
// verdicts never fail the pipeline; the deploy already happened.
func (p *Pipeline) runMonitor(ctx context.Context, change Change, result *Result) {
	if p.runner == nil || p.MonitorDuration <= 0 {
		p.record(ctx, result, change, StageMonitor, StatusSkipped, "monitoring attachment disabled")
		return
	}

	app := deploy.AppNameFromRepository(change.Repository)
	environment := change.Environment
	if environment == "" {
		environment = "staging"
	}

	probeURL := ""
	if result.Deploy != nil {
		probeURL = result.Deploy.URL
	}

	samples := p.runner.Run(ctx, app, environment, probeURL, p.MonitorDuration)
	report := monitor.Summarize(samples)
	result.Report = &report
	p.collector.RecordCampaign(string(report.OverallHealth))

	p.record(ctx, result, change, StageMonitor, StatusSuccess, string(report.OverallHealth))
}

func (p *Pipeline) record(ctx context.Context, result *Result, change Change, stage, status, detail string) {
	result.Stages = append(result.Stages, StageResult{Stage: stage, Status: status, Detail: detail})
	p.collector.RecordPipelineStage(stage, status)
	if p.notifier != nil {
		p.notifier.NotifyStage(ctx, change.Repository, stage, status, detail)
	}
}
