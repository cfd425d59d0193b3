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
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watcher", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "watcher-test-*")
		Expect(err).NotTo(HaveOccurred())

		configFile = filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(configFile, []byte("deploy:\n  defaultEnvironment: staging\n"), 0o600)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	It("should invoke the reload callback when the file changes", func() {
		var reloaded atomic.Pointer[Configuration]
		watcher := NewWatcher(configFile, func(c *Configuration) {
			reloaded.Store(c)
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- watcher.Start(ctx)
		}()

		// Give the watcher a moment to register before writing
		time.Sleep(100 * time.Millisecond)

		Expect(os.WriteFile(configFile, []byte("deploy:\n  defaultEnvironment: production\n"), 0o600)).To(Succeed())

		Eventually(func() string {
			c := reloaded.Load()
			if c == nil {
				return ""
			}
			return c.Deploy.DefaultEnvironment
		}, 5*time.Second, 50*time.Millisecond).Should(Equal("production"))

		cancel()
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})

	It("should keep running when a reload fails validation", func() {
		var calls atomic.Int32
		watcher := NewWatcher(configFile, func(*Configuration) {
			calls.Add(1)
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			_ = watcher.Start(ctx)
		}()
		time.Sleep(100 * time.Millisecond)

		// Broken file: reload fails, callback not invoked
		Expect(os.WriteFile(configFile, []byte("server:\n  bindAddress: \"\"\n"), 0o600)).To(Succeed())
		Consistently(calls.Load, 500*time.Millisecond, 50*time.Millisecond).Should(Equal(int32(0)))

		// Fixed file: watcher is still alive and reloads
		Expect(os.WriteFile(configFile, []byte("deploy:\n  defaultEnvironment: qa\n"), 0o600)).To(Succeed())
		Eventually(calls.Load, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">", 0))
	})
})
