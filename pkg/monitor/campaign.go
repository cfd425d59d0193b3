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
	"net/http"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/cluster"
	"github.com/ahoma/shipmate/pkg/deploy"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/metrics"
)

const (
	// DefaultCadence is the fixed pause between samples
	DefaultCadence = 30 * time.Second

	// DefaultProbeTimeout bounds each HTTP liveness probe
	DefaultProbeTimeout = 5 * time.Second

	appLabel = "app"
)

// Runner executes one monitoring campaign: floor(duration/cadence)
// samples at a fixed cadence, each gathering deployment, pod, and
// service metrics plus an HTTP liveness probe. A failure collecting one
// sample is recorded as an error sample and never aborts the campaign.
type Runner struct {
	cluster   *cluster.Client
	collector *metrics.Collector
	log       *logging.Logger

	// Cadence and ProbeTimeout fall back to the defaults when zero.
	// Tests shrink them.
	Cadence      time.Duration
	ProbeTimeout time.Duration

	// HTTPClient performs liveness probes. Replaced in tests.
	HTTPClient *http.Client
}

// NewRunner creates a campaign runner over the cluster handle. The
// collector may be nil. An unavailable handle does not prevent running;
// every sample of such a campaign is an error sample carrying the
// reason.
func NewRunner(clusterClient *cluster.Client, log *logging.Logger, collector *metrics.Collector) *Runner {
	return &Runner{
		cluster:      clusterClient,
		collector:    collector,
		log:          log.WithName("campaign"),
		Cadence:      DefaultCadence,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Run samples the workload for the given duration. The sample count is
// floor(duration/cadence); a duration below the cadence yields zero
// samples. The runner sleeps between iterations only, never after the
// last. Context cancellation is the external-termination path and
// returns the samples collected so far.
func (r *Runner) Run(ctx context.Context, app, namespace, probeURL string, duration time.Duration) []Sample {
	cadence := r.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	iterations := int(duration / cadence)
	log := r.log.WithCampaign(app, namespace)
	log.Info("Starting monitoring campaign", "duration", duration.String(), "samples", iterations, "probe_url", probeURL)

	samples := make([]Sample, 0, iterations)
	for i := 0; i < iterations; i++ {
		samples = append(samples, r.collectSample(ctx, app, namespace, probeURL))

		if i < iterations-1 {
			select {
			case <-time.After(cadence):
			case <-ctx.Done():
				log.Info("Campaign terminated externally", "collected", len(samples))
				return samples
			}
		}
	}

	log.Info("Monitoring campaign complete", "collected", len(samples))
	return samples
}

// collectSample gathers one snapshot. Cluster lookup failures degrade
// the whole sample to an error record; probe failures degrade only the
// health check.
func (r *Runner) collectSample(ctx context.Context, app, namespace, probeURL string) Sample {
	start := time.Now()
	defer func() {
		r.collector.ObserveSampleDuration(time.Since(start))
	}()

	sample := Sample{Timestamp: start.UTC()}

	clientset, err := r.cluster.Clientset()
	if err != nil {
		return r.errorSample(sample, err)
	}

	deployment, err := r.deploymentMetrics(ctx, clientset, app, namespace)
	if err != nil {
		return r.errorSample(sample, err)
	}
	sample.Deployment = deployment

	pods, err := r.podMetrics(ctx, clientset, app, namespace)
	if err != nil {
		return r.errorSample(sample, err)
	}
	sample.Pods = pods

	service, err := r.serviceMetrics(ctx, clientset, app, namespace)
	if err != nil {
		return r.errorSample(sample, err)
	}
	sample.Service = service

	sample.Health = r.probe(ctx, probeURL)
	r.collector.RecordProbe(sample.Health.Healthy)

	return sample
}

func (r *Runner) errorSample(sample Sample, err error) Sample {
	sample.Err = err.Error()
	r.log.Info("Sample collection failed", "error", err.Error())
	r.collector.RecordSampleError()
	return sample
}

func (r *Runner) deploymentMetrics(ctx context.Context, clientset kubernetes.Interface, app, namespace string) (DeploymentMetrics, error) {
	deployment, err := clientset.AppsV1().Deployments(namespace).Get(ctx, app, metav1.GetOptions{})
	if err != nil {
		return DeploymentMetrics{}, fmt.Errorf("failed to read deployment %s/%s: %w", namespace, app, err)
	}

	desired := int32(0)
	if deployment.Spec.Replicas != nil {
		desired = *deployment.Spec.Replicas
	}

	return DeploymentMetrics{
		DesiredReplicas:   desired,
		ReadyReplicas:     deployment.Status.ReadyReplicas,
		AvailableReplicas: deployment.Status.AvailableReplicas,
		UpdatedReplicas:   deployment.Status.UpdatedReplicas,
	}, nil
}

func (r *Runner) podMetrics(ctx context.Context, clientset kubernetes.Interface, app, namespace string) (PodMetrics, error) {
	selector := labels.Set{appLabel: app}.AsSelector().String()
	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return PodMetrics{}, fmt.Errorf("failed to list pods for app %s in %s: %w", app, namespace, err)
	}

	out := PodMetrics{Total: len(pods.Items)}
	for _, pod := range pods.Items {
		switch pod.Status.Phase {
		case corev1.PodRunning:
			out.Running++
		case corev1.PodPending:
			out.Pending++
		case corev1.PodFailed:
			out.Failed++
		}
		for _, status := range pod.Status.ContainerStatuses {
			out.Restarts += int(status.RestartCount)
		}
	}
	return out, nil
}

func (r *Runner) serviceMetrics(ctx context.Context, clientset kubernetes.Interface, app, namespace string) (ServiceMetrics, error) {
	name := deploy.ServiceName(app)

	service, err := clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return ServiceMetrics{}, fmt.Errorf("failed to read service %s/%s: %w", namespace, name, err)
	}

	out := ServiceMetrics{
		Type:      string(service.Spec.Type),
		ClusterIP: service.Spec.ClusterIP,
	}

	// Endpoint count is best-effort; a missing endpoints object just
	// reads as zero.
	if endpoints, err := clientset.CoreV1().Endpoints(namespace).Get(ctx, name, metav1.GetOptions{}); err == nil {
		for _, subset := range endpoints.Subsets {
			out.Endpoints += len(subset.Addresses)
		}
	}

	return out, nil
}

// probe performs the HTTP liveness check. Any response counts as a
// completed probe: 2xx is healthy, everything else unhealthy. Transport
// failures are recorded on the check, not raised.
func (r *Runner) probe(ctx context.Context, probeURL string) HealthCheck {
	check := HealthCheck{URL: probeURL}
	if probeURL == "" {
		check.Error = "no probe URL"
		return check
	}

	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		check.Error = err.Error()
		return check
	}

	start := time.Now()
	resp, err := client.Do(req)
	check.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check
	}
	defer resp.Body.Close()

	check.StatusCode = resp.StatusCode
	check.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	return check
}
