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

// Health is a campaign verdict.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthWarning   Health = "warning"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown   Health = "unknown"
)

// Verdict thresholds on the health-check success rate over valid
// samples.
const (
	healthyThreshold = 0.9
	warningThreshold = 0.7
)

// Metrics holds the averages computed over the valid samples of a
// campaign.
type Metrics struct {
	AvgReadyReplicas  float64 `json:"avg_ready_replicas"`
	AvgRunningPods    float64 `json:"avg_running_pods"`
	HealthSuccessRate float64 `json:"health_success_rate"`
	ValidSamples      int     `json:"valid_samples"`
	ErrorSamples      int     `json:"error_samples"`
}

// Report is the aggregated outcome of one campaign.
type Report struct {
	OverallHealth   Health   `json:"overall_health"`
	Metrics         Metrics  `json:"metrics"`
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}

// Summarize reduces a campaign's samples to a single report. Error
// samples are excluded from every average and only counted. With no
// valid samples the verdict is always unknown with exactly one alert
// and one recommendation, regardless of how the campaign failed.
func Summarize(samples []Sample) Report {
	report := Report{
		Alerts:          []string{},
		Recommendations: []string{},
	}

	valid := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if sample.Failed() {
			report.Metrics.ErrorSamples++
			continue
		}
		valid = append(valid, sample)
	}
	report.Metrics.ValidSamples = len(valid)

	if len(valid) == 0 {
		report.OverallHealth = HealthUnknown
		report.Alerts = append(report.Alerts, "no valid monitoring data collected")
		report.Recommendations = append(report.Recommendations, "check cluster connectivity and deployment status")
		return report
	}

	var readySum, runningSum, healthySum float64
	for _, sample := range valid {
		readySum += float64(sample.Deployment.ReadyReplicas)
		runningSum += float64(sample.Pods.Running)
		if sample.Health.Healthy {
			healthySum++
		}
	}

	count := float64(len(valid))
	report.Metrics.AvgReadyReplicas = readySum / count
	report.Metrics.AvgRunningPods = runningSum / count
	report.Metrics.HealthSuccessRate = healthySum / count

	switch rate := report.Metrics.HealthSuccessRate; {
	case rate >= healthyThreshold:
		report.OverallHealth = HealthHealthy
	case rate >= warningThreshold:
		report.OverallHealth = HealthWarning
	default:
		report.OverallHealth = HealthUnhealthy
	}

	if report.Metrics.AvgReadyReplicas < 1 {
		report.Alerts = append(report.Alerts, "average ready replicas below 1")
	}
	if report.Metrics.AvgRunningPods < 1 {
		report.Alerts = append(report.Alerts, "average running pods below 1")
	}
	if report.Metrics.HealthSuccessRate < 0.8 {
		report.Alerts = append(report.Alerts, "health check success rate below 80%")
	}

	if report.Metrics.AvgReadyReplicas < 2 {
		report.Recommendations = append(report.Recommendations, "consider scaling up replicas for high availability")
	}
	if report.Metrics.HealthSuccessRate < 0.9 {
		report.Recommendations = append(report.Recommendations, "investigate application health check failures")
	}

	return report
}
