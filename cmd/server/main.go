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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/ahoma/shipmate/pkg/di"
)

var (
	// Build-time variables
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to the YAML configuration file.")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version information and exit.")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("Shipmate Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	// controller-runtime's client machinery logs through this logger
	opts := zap.Options{
		Development: *logLevel == "debug",
	}
	logger := zap.New(zap.UseFlagOptions(&opts))
	ctrl.SetLogger(logger)

	setupLog := logger.WithName("setup")
	setupLog.Info("Starting Shipmate server",
		"version", version,
		"commit", commit,
		"buildDate", buildDate,
		"config", *configFile,
		"log-level", *logLevel,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := di.NewApplicationBuilder().
		WithConfigFile(*configFile).
		Build(ctx)
	if err != nil {
		setupLog.Error(err, "failed to build application")
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		setupLog.Error(err, "server exited with error")
		os.Exit(1)
	}

	setupLog.Info("Server stopped")
}
