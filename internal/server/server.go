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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/pkg/logging"
)

// Server assembles the gin engine and runs it with graceful shutdown.
type Server struct {
	config config.ServerConfig
	engine *gin.Engine
	log    *logging.Logger
}

// NewServer builds the route table from the handler components.
func NewServer(cfg config.ServerConfig, health *HealthChecker, metrics *MetricsServer, api *API, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", health.HealthzHandler)
	engine.GET("/readyz", health.ReadyzHandler)
	engine.GET("/metrics", metrics.MetricsHandler)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/deploy", api.DeployHandler)
		v1.POST("/monitor", api.MonitorHandler)
		v1.POST("/rollback", api.RollbackHandler)
		v1.POST("/pipeline", api.PipelineHandler)
	}

	return &Server{
		config: cfg,
		engine: engine,
		log:    log.WithName("server"),
	}
}

// Engine exposes the router for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight
// requests within the configured graceful shutdown window.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.BindAddress,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", s.config.BindAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownTimeout := s.config.GracefulShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server", "timeout", shutdownTimeout.String())
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
