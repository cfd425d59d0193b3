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

// Package notify posts stage results and campaign reports to a chat
// webhook. Delivery is best effort: failures are logged and never
// propagate to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/monitor"
)

// WebhookNotifier posts JSON messages to a configured webhook URL. A
// disabled notifier is valid and drops every message silently.
type WebhookNotifier struct {
	url        string
	enabled    bool
	httpClient *http.Client
	log        *logging.Logger
}

// NewWebhookNotifier creates a notifier from configuration.
func NewWebhookNotifier(cfg config.NotificationsConfig, log *logging.Logger) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithName("notify"),
	}
}

type message struct {
	Text    string         `json:"text"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// NotifyStage reports the outcome of one pipeline stage.
func (n *WebhookNotifier) NotifyStage(ctx context.Context, repository, stage, result string, detail string) {
	text := fmt.Sprintf("pipeline %s: stage %s %s", repository, stage, result)
	n.post(ctx, message{
		Text: text,
		Kind: "pipeline_stage",
		Details: map[string]any{
			"repository": repository,
			"stage":      stage,
			"result":     result,
			"detail":     detail,
		},
	})
}

// NotifyDeploy reports the outcome of one deploy.
func (n *WebhookNotifier) NotifyDeploy(ctx context.Context, deployID, app, namespace, status, url string) {
	text := fmt.Sprintf("deploy %s: %s/%s %s", deployID, namespace, app, status)
	n.post(ctx, message{
		Text: text,
		Kind: "deploy",
		Details: map[string]any{
			"deployment_id": deployID,
			"app":           app,
			"namespace":     namespace,
			"status":        status,
			"url":           url,
		},
	})
}

// NotifyReport reports a finished monitoring campaign. Satisfies
// monitor.ReportSink.
func (n *WebhookNotifier) NotifyReport(ctx context.Context, app, namespace string, report monitor.Report) {
	text := fmt.Sprintf("monitoring %s/%s: %s (%d valid samples, %d errors)",
		namespace, app, report.OverallHealth,
		report.Metrics.ValidSamples, report.Metrics.ErrorSamples)
	n.post(ctx, message{
		Text: text,
		Kind: "monitoring_report",
		Details: map[string]any{
			"app":             app,
			"namespace":       namespace,
			"overall_health":  string(report.OverallHealth),
			"alerts":          report.Alerts,
			"recommendations": report.Recommendations,
		},
	})
}

func (n *WebhookNotifier) post(ctx context.Context, msg message) {
	if n == nil || !n.enabled {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		n.log.Error(err, "Failed to encode notification")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Error(err, "Failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Error(err, "Failed to deliver notification", "kind", msg.Kind)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Info("Notification rejected by webhook", "kind", msg.Kind, "status", resp.StatusCode)
	}
}
