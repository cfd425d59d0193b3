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

// Package server provides the HTTP surface of the Shipmate server:
// health checks, Prometheus metrics, and the deploy/monitor/rollback
// pipeline API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahoma/shipmate/pkg/cluster"
)

// HealthChecker serves /healthz and /readyz. Liveness only says the
// process is up; readiness additionally requires the cluster capability
// handle to be available and answering.
type HealthChecker struct {
	cluster   *cluster.Client
	startTime time.Time

	mu             sync.RWMutex
	notReadyReason string
}

// NewHealthChecker creates a health checker bound to the cluster handle
func NewHealthChecker(clusterClient *cluster.Client) *HealthChecker {
	return &HealthChecker{
		cluster:   clusterClient,
		startTime: time.Now(),
	}
}

// HealthzHandler implements the /healthz endpoint
// Returns 200 OK whenever the server loop is running
func (h *HealthChecker) HealthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadyzHandler implements the /readyz endpoint
// Returns 200 OK only when the server can act on cluster requests
func (h *HealthChecker) ReadyzHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	h.mu.RLock()
	notReadyReason := h.notReadyReason
	h.mu.RUnlock()

	if notReadyReason != "" {
		checks["manual-check"] = fmt.Sprintf("not ready: %s", notReadyReason)
		ready = false
	}

	if err := h.checkCluster(ctx); err != nil {
		checks["cluster-access"] = fmt.Sprintf("failed: %v", err)
		ready = false
	} else {
		checks["cluster-access"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status": status,
		"checks": checks,
		"uptime": time.Since(h.startTime).String(),
	})
}

// SetNotReady forces /readyz to fail, e.g. during draining
func (h *HealthChecker) SetNotReady(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notReadyReason = reason
}

// ClearNotReady clears a forced not-ready state
func (h *HealthChecker) ClearNotReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notReadyReason = ""
}

// checkCluster verifies the capability handle and API reachability
func (h *HealthChecker) checkCluster(ctx context.Context) error {
	if h.cluster == nil {
		return fmt.Errorf("cluster client not initialized")
	}
	if !h.cluster.Available() {
		return fmt.Errorf("cluster access unavailable: %s", h.cluster.Reason())
	}
	if err := h.cluster.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach cluster API: %w", err)
	}
	return nil
}
