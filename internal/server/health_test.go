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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/ahoma/shipmate/pkg/cluster"
)

func performGet(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

func healthEngine(checker *HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/healthz", checker.HealthzHandler)
	engine.GET("/readyz", checker.ReadyzHandler)
	return engine
}

func TestHealthzAlwaysHealthy(t *testing.T) {
	engine := healthEngine(NewHealthChecker(cluster.NewUnavailable("no kubeconfig")))

	recorder := performGet(engine, "/healthz")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "healthy")
}

func TestReadyzWithAvailableCluster(t *testing.T) {
	engine := healthEngine(NewHealthChecker(cluster.NewFromClientset(fake.NewSimpleClientset())))

	recorder := performGet(engine, "/readyz")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"cluster-access":"ok"`)
}

func TestReadyzWithUnavailableCluster(t *testing.T) {
	engine := healthEngine(NewHealthChecker(cluster.NewUnavailable("no kubeconfig")))

	recorder := performGet(engine, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "no kubeconfig")
}

func TestReadyzManualNotReady(t *testing.T) {
	checker := NewHealthChecker(cluster.NewFromClientset(fake.NewSimpleClientset()))
	engine := healthEngine(checker)

	checker.SetNotReady("draining")
	recorder := performGet(engine, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "draining")

	checker.ClearNotReady()
	recorder = performGet(engine, "/readyz")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestMetricsEndpointServesCollectors(t *testing.T) {
	server := newTestServer(&fakeDeployService{}, &fakeCampaignService{}, nil)

	recorder := performGet(server.Engine(), "/metrics")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "go_goroutines")

	// The shared handler serves repeated scrapes.
	again := performGet(server.Engine(), "/metrics")
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Contains(t, again.Body.String(), "go_goroutines")
}
