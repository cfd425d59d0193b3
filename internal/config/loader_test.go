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
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConfigurationLoader", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())

		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
		cleanupEnvVars(map[string]string{
			"SHIPMATE_BIND_ADDRESS":        "",
			"SHIPMATE_DEFAULT_ENVIRONMENT": "",
			"SHIPMATE_READINESS_TIMEOUT":   "",
			"SHIPMATE_MONITORING_DURATION": "",
			"SHIPMATE_KUBE_QPS":            "",
			"SHIPMATE_NOTIFY_WEBHOOK_URL":  "",
		})
	})

	Describe("DefaultConfiguration", func() {
		It("should return a valid default configuration", func() {
			config := DefaultConfiguration()
			Expect(config).NotTo(BeNil())

			Expect(config.Server.BindAddress).To(Equal(":8080"))
			Expect(config.Deploy.DefaultEnvironment).To(Equal("staging"))
			Expect(config.Deploy.ReadinessTimeout).To(Equal(300 * time.Second))
			Expect(config.Deploy.ReadinessPollInterval).To(Equal(5 * time.Second))
			Expect(config.Monitoring.DefaultDuration).To(Equal(300 * time.Second))
			Expect(config.Monitoring.ProbeTimeout).To(Equal(5 * time.Second))
			Expect(config.Kubernetes.QPS).To(Equal(float32(20.0)))
			Expect(config.Kubernetes.Burst).To(Equal(30))

			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("LoadFromFile", func() {
		It("should load configuration from a YAML file", func() {
			content := `
server:
  bindAddress: ":9090"
deploy:
  defaultEnvironment: production
  readinessTimeout: 120s
monitoring:
  defaultDuration: 600s
`
			Expect(os.WriteFile(configFile, []byte(content), 0o600)).To(Succeed())

			loader := NewConfigurationLoader()
			Expect(loader.LoadFromFile(configFile)).To(Succeed())

			config := loader.Config()
			Expect(config.Server.BindAddress).To(Equal(":9090"))
			Expect(config.Deploy.DefaultEnvironment).To(Equal("production"))
			Expect(config.Deploy.ReadinessTimeout).To(Equal(120 * time.Second))
			Expect(config.Monitoring.DefaultDuration).To(Equal(600 * time.Second))

			// Defaults survive for fields the file omits
			Expect(config.Deploy.ReadinessPollInterval).To(Equal(5 * time.Second))
		})

		It("should fail for a missing file", func() {
			loader := NewConfigurationLoader()
			err := loader.LoadFromFile(filepath.Join(tempDir, "nope.yaml"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not found"))
		})

		It("should fail for malformed YAML", func() {
			Expect(os.WriteFile(configFile, []byte("server: [not a map"), 0o600)).To(Succeed())

			loader := NewConfigurationLoader()
			Expect(loader.LoadFromFile(configFile)).NotTo(Succeed())
		})

		It("should use defaults when no file is given", func() {
			loader := NewConfigurationLoader()
			Expect(loader.LoadFromFile("")).To(Succeed())
			Expect(loader.Config().Server.BindAddress).To(Equal(":8080"))
		})
	})

	Describe("LoadFromEnv", func() {
		It("should apply environment overrides over file values", func() {
			content := "deploy:\n  defaultEnvironment: production\n"
			Expect(os.WriteFile(configFile, []byte(content), 0o600)).To(Succeed())

			setEnvVars(map[string]string{
				"SHIPMATE_BIND_ADDRESS":        ":7000",
				"SHIPMATE_DEFAULT_ENVIRONMENT": "canary",
				"SHIPMATE_READINESS_TIMEOUT":   "90s",
				"SHIPMATE_KUBE_QPS":            "50",
			})

			loader := NewConfigurationLoader()
			config, err := loader.Load(configFile)
			Expect(err).NotTo(HaveOccurred())

			Expect(config.Server.BindAddress).To(Equal(":7000"))
			Expect(config.Deploy.DefaultEnvironment).To(Equal("canary"))
			Expect(config.Deploy.ReadinessTimeout).To(Equal(90 * time.Second))
			Expect(config.Kubernetes.QPS).To(Equal(float32(50)))
		})

		It("should reject unparsable override values", func() {
			setEnvVars(map[string]string{
				"SHIPMATE_READINESS_TIMEOUT": "not-a-duration",
			})

			loader := NewConfigurationLoader()
			_, err := loader.Load("")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("SHIPMATE_READINESS_TIMEOUT"))
		})

		It("should enable notifications when a webhook URL override is set", func() {
			setEnvVars(map[string]string{
				"SHIPMATE_NOTIFY_WEBHOOK_URL": "https://chat.example.com/hook",
			})

			loader := NewConfigurationLoader()
			config, err := loader.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(config.Notifications.Enabled).To(BeTrue())
			Expect(config.Notifications.WebhookURL).To(Equal("https://chat.example.com/hook"))
		})
	})

	Describe("Validate", func() {
		It("should collect every problem into one error", func() {
			config := DefaultConfiguration()
			config.Server.BindAddress = ""
			config.Kubernetes.QPS = 0
			config.Deploy.ReadinessTimeout = 0

			err := config.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("server.bindAddress"))
			Expect(err.Error()).To(ContainSubstring("kubernetes.qps"))
			Expect(err.Error()).To(ContainSubstring("deploy.readinessTimeout"))
		})

		It("should reject a poll interval longer than the readiness timeout", func() {
			config := DefaultConfiguration()
			config.Deploy.ReadinessPollInterval = 10 * time.Minute

			err := config.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("readinessPollInterval"))
		})

		It("should require targets for an enabled schedule", func() {
			config := DefaultConfiguration()
			config.Monitoring.Schedule.Enabled = true
			config.Monitoring.Schedule.Targets = nil

			err := config.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("schedule.targets"))
		})
	})
})
