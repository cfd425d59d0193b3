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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metricsCollector "github.com/ahoma/shipmate/pkg/metrics"
)

// MetricsServer serves /metrics from a dedicated registry holding the
// Shipmate collectors plus the standard process and Go collectors.
type MetricsServer struct {
	registry *prometheus.Registry
	handler  gin.HandlerFunc
}

// NewMetricsServer creates a metrics server and registers the collector
func NewMetricsServer(collector *metricsCollector.Collector) *MetricsServer {
	registry := prometheus.NewRegistry()

	collector.Register(registry)
	_ = registry.Register(collectors.NewGoCollector())
	_ = registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      registry,
		Timeout:       30 * time.Second,
	})

	return &MetricsServer{
		registry: registry,
		handler:  gin.WrapH(handler),
	}
}

// MetricsHandler implements the /metrics endpoint
func (m *MetricsServer) MetricsHandler(c *gin.Context) {
	m.handler(c)
}

// GetRegistry returns the Prometheus registry for advanced usage
func (m *MetricsServer) GetRegistry() *prometheus.Registry {
	return m.registry
}
