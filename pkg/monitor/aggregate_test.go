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
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// sampleSet fabricates count valid samples of which healthy report a
// passing health check, all with two ready replicas and two running
// pods.
func sampleSet(count, healthy int) []Sample {
	samples := make([]Sample, 0, count)
	for i := 0; i < count; i++ {
		samples = append(samples, Sample{
			Timestamp:  time.Now().UTC(),
			Deployment: DeploymentMetrics{DesiredReplicas: 2, ReadyReplicas: 2},
			Pods:       PodMetrics{Total: 2, Running: 2},
			Health:     HealthCheck{Healthy: i < healthy, StatusCode: 200},
		})
	}
	return samples
}

var _ = ginkgo.Describe("Summarize", func() {
	ginkgo.Context("verdict thresholds", func() {
		ginkgo.It("reports healthy at a 100% success rate", func() {
			report := Summarize(sampleSet(10, 10))
			Expect(report.OverallHealth).To(Equal(HealthHealthy))
			Expect(report.Metrics.HealthSuccessRate).To(Equal(1.0))
		})

		ginkgo.It("reports healthy at exactly 90%", func() {
			report := Summarize(sampleSet(10, 9))
			Expect(report.OverallHealth).To(Equal(HealthHealthy))
		})

		ginkgo.It("reports warning at 85%", func() {
			report := Summarize(sampleSet(20, 17))
			Expect(report.OverallHealth).To(Equal(HealthWarning))
		})

		ginkgo.It("reports warning at exactly 70%", func() {
			report := Summarize(sampleSet(10, 7))
			Expect(report.OverallHealth).To(Equal(HealthWarning))
		})

		ginkgo.It("reports unhealthy at 60%", func() {
			report := Summarize(sampleSet(10, 6))
			Expect(report.OverallHealth).To(Equal(HealthUnhealthy))
		})
	})

	ginkgo.Context("with no valid samples", func() {
		assertUnknown := func(report Report) {
			Expect(report.OverallHealth).To(Equal(HealthUnknown))
			Expect(report.Alerts).To(HaveLen(1))
			Expect(report.Recommendations).To(HaveLen(1))
			Expect(report.Metrics.ValidSamples).To(BeZero())
		}

		ginkgo.It("reports unknown for an empty campaign", func() {
			assertUnknown(Summarize(nil))
		})

		ginkgo.It("reports unknown when every sample errored", func() {
			report := Summarize([]Sample{
				{Timestamp: time.Now().UTC(), Err: "connection refused"},
				{Timestamp: time.Now().UTC(), Err: "connection refused"},
			})
			assertUnknown(report)
			Expect(report.Metrics.ErrorSamples).To(Equal(2))
		})

		ginkgo.It("is deterministic regardless of failure mode", func() {
			fromEmpty := Summarize(nil)
			fromErrors := Summarize([]Sample{{Err: "boom"}})
			Expect(fromEmpty.OverallHealth).To(Equal(fromErrors.OverallHealth))
			Expect(fromEmpty.Alerts).To(Equal(fromErrors.Alerts))
			Expect(fromEmpty.Recommendations).To(Equal(fromErrors.Recommendations))
		})
	})

	ginkgo.Context("averages", func() {
		ginkgo.It("excludes error samples from every average", func() {
			samples := sampleSet(4, 4)
			samples = append(samples, Sample{Err: "api server unreachable"})

			report := Summarize(samples)
			Expect(report.Metrics.ValidSamples).To(Equal(4))
			Expect(report.Metrics.ErrorSamples).To(Equal(1))
			Expect(report.Metrics.AvgReadyReplicas).To(Equal(2.0))
			Expect(report.Metrics.AvgRunningPods).To(Equal(2.0))
			Expect(report.Metrics.HealthSuccessRate).To(Equal(1.0))
		})
	})

	ginkgo.Context("alerts and recommendations", func() {
		ginkgo.It("raises no alerts for a healthy multi-replica workload", func() {
			report := Summarize(sampleSet(5, 5))
			Expect(report.Alerts).To(BeEmpty())
			Expect(report.Recommendations).To(BeEmpty())
		})

		ginkgo.It("alerts on low availability and poor health", func() {
			samples := []Sample{
				{Deployment: DeploymentMetrics{ReadyReplicas: 0}, Pods: PodMetrics{Running: 0}, Health: HealthCheck{Healthy: false}},
				{Deployment: DeploymentMetrics{ReadyReplicas: 0}, Pods: PodMetrics{Running: 0}, Health: HealthCheck{Healthy: true}},
			}

			report := Summarize(samples)
			Expect(report.OverallHealth).To(Equal(HealthUnhealthy))
			Expect(report.Alerts).To(ContainElement(ContainSubstring("ready replicas")))
			Expect(report.Alerts).To(ContainElement(ContainSubstring("running pods")))
			Expect(report.Alerts).To(ContainElement(ContainSubstring("success rate")))
		})

		ginkgo.It("recommends scaling a single-replica workload", func() {
			samples := make([]Sample, 0, 5)
			for i := 0; i < 5; i++ {
				samples = append(samples, Sample{
					Deployment: DeploymentMetrics{DesiredReplicas: 1, ReadyReplicas: 1},
					Pods:       PodMetrics{Total: 1, Running: 1},
					Health:     HealthCheck{Healthy: true},
				})
			}

			report := Summarize(samples)
			Expect(report.OverallHealth).To(Equal(HealthHealthy))
			Expect(report.Alerts).To(BeEmpty())
			Expect(report.Recommendations).To(ContainElement(ContainSubstring("scaling up")))
		})
	})
})
