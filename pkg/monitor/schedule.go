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

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/metrics"
)

// AddressResolver locates the probe URL for a scheduled target.
// Satisfied by deploy.AddressResolver.
type AddressResolver interface {
	Resolve(ctx context.Context, app, namespace string) string
}

// ReportSink receives the aggregated report of each scheduled
// campaign. Satisfied by notify.WebhookNotifier.
type ReportSink interface {
	NotifyReport(ctx context.Context, app, namespace string, report Report)
}

// Scheduler runs recurring monitoring campaigns over the configured
// targets on a cron cadence.
type Scheduler struct {
	runner    *Runner
	resolver  AddressResolver
	collector *metrics.Collector
	log       *logging.Logger

	schedule config.ScheduleConfig
	cron     *cron.Cron

	// Sink is optional; when set it receives every campaign report.
	Sink ReportSink
}

// NewScheduler creates a scheduler for the given schedule
// configuration. It does nothing until Start is called.
func NewScheduler(runner *Runner, resolver AddressResolver, collector *metrics.Collector, log *logging.Logger, schedule config.ScheduleConfig) *Scheduler {
	return &Scheduler{
		runner:    runner,
		resolver:  resolver,
		collector: collector,
		log:       log.WithName("scheduler"),
		schedule:  schedule,
	}
}

// Start registers the cron entry and begins running campaigns. It is a
// no-op when the schedule is disabled. The context bounds every
// campaign launched by the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.schedule.Enabled {
		s.log.Info("Scheduled monitoring disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule.Cron, func() { s.runCampaigns(ctx) }); err != nil {
		return fmt.Errorf("failed to register monitoring schedule %q: %w", s.schedule.Cron, err)
	}

	s.cron.Start()
	s.log.Info("Scheduled monitoring started", "cron", s.schedule.Cron, "targets", len(s.schedule.Targets))
	return nil
}

// Stop halts the cron loop. Campaigns already in flight run to
// completion or until their context is cancelled.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// runCampaigns samples every configured target sequentially. One
// target's troubles never skip the rest.
func (s *Scheduler) runCampaigns(ctx context.Context) {
	duration := s.schedule.Duration
	if duration <= 0 {
		duration = 300 * time.Second
	}

	for _, target := range s.schedule.Targets {
		if ctx.Err() != nil {
			return
		}

		log := s.log.WithCampaign(target.App, target.Namespace)
		probeURL := s.resolver.Resolve(ctx, target.App, target.Namespace)

		samples := s.runner.Run(ctx, target.App, target.Namespace, probeURL, duration)
		report := Summarize(samples)
		s.collector.RecordCampaign(string(report.OverallHealth))

		log.Info("Scheduled campaign finished",
			"verdict", string(report.OverallHealth),
			"valid_samples", report.Metrics.ValidSamples,
			"error_samples", report.Metrics.ErrorSamples)

		if s.Sink != nil {
			s.Sink.NotifyReport(ctx, target.App, target.Namespace, report)
		}
	}
}
