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

// Package metrics provides Prometheus metrics collection and recording
// for Shipmate deploy, rollback, and monitoring operations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	deploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipmate_deploys_total",
			Help: "Total number of deploy invocations",
		},
		[]string{"environment", "result"},
	)

	rolloutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipmate_rollout_duration_seconds",
			Help:    "Time from first apply to deployment readiness",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"environment"},
	)

	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipmate_rollbacks_total",
			Help: "Total number of rollback invocations",
		},
		[]string{"result"},
	)

	campaignsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipmate_monitoring_campaigns_total",
			Help: "Total number of completed monitoring campaigns by verdict",
		},
		[]string{"verdict"},
	)

	sampleErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipmate_monitoring_sample_errors_total",
			Help: "Total number of monitoring samples recorded as errors",
		},
	)

	sampleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shipmate_monitoring_sample_duration_seconds",
			Help:    "Time spent collecting one monitoring sample, probe included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipmate_liveness_probes_total",
			Help: "Total number of HTTP liveness probes by outcome",
		},
		[]string{"outcome"},
	)

	pipelineStagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipmate_pipeline_stages_total",
			Help: "Total number of executed pipeline stages",
		},
		[]string{"stage", "result"},
	)
)

// Collector records Shipmate operational metrics
type Collector struct {
	mu         sync.RWMutex
	lastDeploy time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// Register registers all Shipmate metrics with the provided registry.
// Register (not MustRegister) is used so duplicate registration during
// restarts or tests does not panic.
func (c *Collector) Register(registry prometheus.Registerer) {
	collectors := []prometheus.Collector{
		deploysTotal,
		rolloutDuration,
		rollbacksTotal,
		campaignsTotal,
		sampleErrorsTotal,
		sampleDuration,
		probesTotal,
		pipelineStagesTotal,
	}
	for _, collector := range collectors {
		_ = registry.Register(collector)
	}
}

// RecordDeploy records the outcome of one deploy invocation
func (c *Collector) RecordDeploy(environment, result string) {
	if c == nil {
		return
	}
	deploysTotal.WithLabelValues(environment, result).Inc()

	c.mu.Lock()
	c.lastDeploy = time.Now()
	c.mu.Unlock()
}

// ObserveRolloutDuration records time-to-ready for one rollout
func (c *Collector) ObserveRolloutDuration(environment string, d time.Duration) {
	if c == nil {
		return
	}
	rolloutDuration.WithLabelValues(environment).Observe(d.Seconds())
}

// RecordRollback records the outcome of one rollback invocation
func (c *Collector) RecordRollback(result string) {
	if c == nil {
		return
	}
	rollbacksTotal.WithLabelValues(result).Inc()
}

// RecordCampaign records a completed campaign's verdict
func (c *Collector) RecordCampaign(verdict string) {
	if c == nil {
		return
	}
	campaignsTotal.WithLabelValues(verdict).Inc()
}

// RecordSampleError records one monitoring sample collection failure
func (c *Collector) RecordSampleError() {
	if c == nil {
		return
	}
	sampleErrorsTotal.Inc()
}

// ObserveSampleDuration records how long one sample took to collect
func (c *Collector) ObserveSampleDuration(d time.Duration) {
	if c == nil {
		return
	}
	sampleDuration.Observe(d.Seconds())
}

// RecordProbe records one liveness probe outcome
func (c *Collector) RecordProbe(healthy bool) {
	if c == nil {
		return
	}
	outcome := "unhealthy"
	if healthy {
		outcome = "healthy"
	}
	probesTotal.WithLabelValues(outcome).Inc()
}

// RecordPipelineStage records one executed pipeline stage
func (c *Collector) RecordPipelineStage(stage, result string) {
	if c == nil {
		return
	}
	pipelineStagesTotal.WithLabelValues(stage, result).Inc()
}

// LastDeploy returns the time of the most recent deploy, zero when none
func (c *Collector) LastDeploy() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDeploy
}
