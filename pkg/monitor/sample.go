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

// Package monitor runs time-boxed monitoring campaigns against deployed
// workloads and reduces the collected samples into a health verdict
// with alerts and recommendations.
package monitor

import "time"

// DeploymentMetrics is the replica view of one sample
type DeploymentMetrics struct {
	DesiredReplicas   int32 `json:"desired_replicas"`
	ReadyReplicas     int32 `json:"ready_replicas"`
	AvailableReplicas int32 `json:"available_replicas"`
	UpdatedReplicas   int32 `json:"updated_replicas"`
}

// PodMetrics is the pod view of one sample, filtered by app label
type PodMetrics struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
	Restarts int `json:"restarts"`
}

// ServiceMetrics is the service view of one sample
type ServiceMetrics struct {
	Type      string `json:"type"`
	ClusterIP string `json:"cluster_ip"`
	Endpoints int    `json:"endpoints"`
}

// HealthCheck is the HTTP liveness result of one sample. A non-2xx
// status is unhealthy but not an error; a transport failure is recorded
// in Error and likewise leaves the sample valid.
type HealthCheck struct {
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Sample is one timestamped snapshot of workload state. When collection
// fails, Err is set and the metric fields are meaningless.
type Sample struct {
	Timestamp  time.Time         `json:"timestamp"`
	Deployment DeploymentMetrics `json:"deployment"`
	Pods       PodMetrics        `json:"pods"`
	Service    ServiceMetrics    `json:"service"`
	Health     HealthCheck       `json:"health_check"`
	Err        string            `json:"error,omitempty"`
}

// Failed reports whether this sample recorded a collection failure
func (s Sample) Failed() bool {
	return s.Err != ""
}
