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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/pkg/logging"
)

type stubResolver struct {
	url string
}

func (s *stubResolver) Resolve(_ context.Context, _, _ string) string {
	return s.url
}

type recordingSink struct {
	apps    []string
	reports []Report
}

func (r *recordingSink) NotifyReport(_ context.Context, app, _ string, report Report) {
	r.apps = append(r.apps, app)
	r.reports = append(r.reports, report)
}

func TestSchedulerDisabledIsNoOp(t *testing.T) {
	scheduler := NewScheduler(nil, nil, nil, logging.Discard(), config.ScheduleConfig{Enabled: false})
	require.NoError(t, scheduler.Start(context.Background()))
	scheduler.Stop()
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	runner := newTestRunner(fake.NewSimpleClientset())
	scheduler := NewScheduler(runner, &stubResolver{}, nil, logging.Discard(), config.ScheduleConfig{
		Enabled: true,
		Cron:    "not a cron expression",
		Targets: []config.ScheduleTarget{{App: "web", Namespace: "staging"}},
	})

	err := scheduler.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cron expression")
}

func TestRunCampaignsCoversEveryTarget(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer probe.Close()

	clientset := fake.NewSimpleClientset(healthyWorkload("web", "staging")...)
	runner := newTestRunner(clientset)
	sink := &recordingSink{}

	scheduler := NewScheduler(runner, &stubResolver{url: probe.URL}, nil, logging.Discard(), config.ScheduleConfig{
		Enabled:  true,
		Cron:     "* * * * *",
		Duration: time.Millisecond,
		Targets: []config.ScheduleTarget{
			{App: "web", Namespace: "staging"},
			{App: "ghost", Namespace: "staging"},
		},
	})
	scheduler.Sink = sink

	scheduler.runCampaigns(context.Background())

	require.Equal(t, []string{"web", "ghost"}, sink.apps, "a failing target must not skip the rest")
	assert.Equal(t, HealthHealthy, sink.reports[0].OverallHealth)
	assert.Equal(t, HealthUnknown, sink.reports[1].OverallHealth)
}
