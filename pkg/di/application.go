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

package di

import (
	"context"
	"fmt"

	"github.com/ahoma/shipmate/internal/config"
	"github.com/ahoma/shipmate/internal/server"
	"github.com/ahoma/shipmate/pkg/deploy"
	"github.com/ahoma/shipmate/pkg/logging"
	"github.com/ahoma/shipmate/pkg/monitor"
)

// ApplicationBuilder assembles the Shipmate server application using DI
type ApplicationBuilder struct {
	container  *Container
	configFile string
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		container: NewContainer(),
	}
}

// WithConfigFile sets the configuration file path
func (b *ApplicationBuilder) WithConfigFile(path string) *ApplicationBuilder {
	b.configFile = path
	return b
}

// Build constructs the application with all dependencies wired
func (b *ApplicationBuilder) Build(_ context.Context) (*Application, error) {
	b.container.MustProvide(func() (*config.Configuration, error) {
		return config.NewConfigurationLoader().Load(b.configFile)
	})

	registry := NewServiceRegistry(b.container)
	if err := registry.RegisterAll(); err != nil {
		return nil, fmt.Errorf("failed to register services: %w", err)
	}

	var app *Application
	if err := b.container.Invoke(func(cfg *config.Configuration, log *logging.Logger) {
		app = &Application{
			Config:     cfg,
			Container:  b.container,
			configFile: b.configFile,
			log:        log.WithName("app"),
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	return app, nil
}

// Application is the assembled Shipmate server
type Application struct {
	Config     *config.Configuration
	Container  *Container
	configFile string
	log        *logging.Logger
}

// Run starts the config watcher and scheduler, then serves HTTP until
// the context is cancelled
func (a *Application) Run(ctx context.Context) error {
	a.log.Info("Starting Shipmate server",
		"bind_address", a.Config.Server.BindAddress,
		"default_environment", a.Config.Deploy.DefaultEnvironment,
		"scheduled_monitoring", a.Config.Monitoring.Schedule.Enabled,
	)

	if a.configFile != "" {
		watcher := config.NewWatcher(a.configFile, func(fresh *config.Configuration) {
			// Readiness tunables take effect on the next deploy;
			// structural settings need a restart.
			a.log.Info("Configuration reloaded",
				"readiness_timeout", fresh.Deploy.ReadinessTimeout.String(),
				"monitoring_duration", fresh.Monitoring.DefaultDuration.String(),
			)
			a.applyTunables(fresh)
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				a.log.Error(err, "Config watcher stopped")
			}
		}()
	}

	var schedulerErr error
	if err := a.Container.Invoke(func(scheduler *monitor.Scheduler) {
		schedulerErr = scheduler.Start(ctx)
		if schedulerErr == nil {
			go func() {
				<-ctx.Done()
				scheduler.Stop()
			}()
		}
	}); err != nil {
		return fmt.Errorf("failed to resolve monitoring scheduler: %w", err)
	}
	if schedulerErr != nil {
		return fmt.Errorf("failed to start monitoring scheduler: %w", schedulerErr)
	}

	var runErr error
	if err := a.Container.Invoke(func(srv *server.Server) {
		runErr = srv.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to resolve HTTP server: %w", err)
	}
	return runErr
}

func (a *Application) applyTunables(fresh *config.Configuration) {
	if err := a.Container.Invoke(func(orchestrator *deploy.Orchestrator) {
		orchestrator.SetReadinessWindow(fresh.Deploy.ReadinessTimeout, fresh.Deploy.ReadinessPollInterval)
	}); err != nil {
		a.log.Error(err, "Failed to apply reloaded configuration")
	}
}

// GetConfig returns the application configuration
func (a *Application) GetConfig() *config.Configuration {
	return a.Config
}
