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

package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	ctrl "sigs.k8s.io/controller-runtime"
)

// Watcher watches the configuration file for changes and reloads it.
// Only tunables read per request (timeouts, durations, endpoints) take
// effect on reload; the bind address and Kubernetes client settings
// require a restart.
type Watcher struct {
	path     string
	onReload func(*Configuration)
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a new configuration watcher
func NewWatcher(path string, onReload func(*Configuration)) *Watcher {
	return &Watcher{
		path:     path,
		onReload: onReload,
	}
}

// Start starts the configuration watcher. It blocks until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	log := ctrl.Log.WithName("config-watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// Watch the directory; editors replace files rather than writing in place
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	log.Info("Started configuration watcher", "path", w.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Name == w.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Info("Configuration file changed, reloading", "file", event.Name)
				if err := w.reload(); err != nil {
					log.Error(err, "Failed to reload configuration")
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "Configuration watcher error")

		case <-ctx.Done():
			return watcher.Close()
		}
	}
}

// reload re-runs the full load pipeline and hands the result to the callback
func (w *Watcher) reload() error {
	loader := NewConfigurationLoader()
	config, err := loader.Load(w.path)
	if err != nil {
		return err
	}

	if w.onReload != nil {
		w.onReload(config)
	}
	return nil
}
