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

// Package config loads and validates the Shipmate server configuration
// from defaults, an optional YAML file, and environment variable
// overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration represents the complete Shipmate configuration
type Configuration struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Kubernetes configuration
	Kubernetes KubernetesConfig `yaml:"kubernetes" json:"kubernetes"`

	// Deploy orchestration configuration
	Deploy DeployConfig `yaml:"deploy" json:"deploy"`

	// Monitoring campaign configuration
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`

	// Pipeline collaborator configuration
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Notification configuration
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	BindAddress             string        `yaml:"bindAddress" json:"bindAddress"`
	ReadTimeout             time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout            time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	GracefulShutdownTimeout time.Duration `yaml:"gracefulShutdownTimeout" json:"gracefulShutdownTimeout"`
}

// KubernetesConfig contains Kubernetes client configuration
type KubernetesConfig struct {
	Kubeconfig string        `yaml:"kubeconfig" json:"kubeconfig"`
	QPS        float32       `yaml:"qps" json:"qps"`
	Burst      int           `yaml:"burst" json:"burst"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent  string        `yaml:"userAgent" json:"userAgent"`
}

// DeployConfig contains rollout orchestration configuration
type DeployConfig struct {
	// DefaultEnvironment is used when a deploy request omits one
	DefaultEnvironment string `yaml:"defaultEnvironment" json:"defaultEnvironment"`

	// ReadinessTimeout bounds the post-apply convergence wait
	ReadinessTimeout time.Duration `yaml:"readinessTimeout" json:"readinessTimeout"`

	// ReadinessPollInterval is the pause between readiness polls
	ReadinessPollInterval time.Duration `yaml:"readinessPollInterval" json:"readinessPollInterval"`
}

// MonitoringConfig contains monitoring campaign configuration
type MonitoringConfig struct {
	// DefaultDuration is used when a monitor request omits one
	DefaultDuration time.Duration `yaml:"defaultDuration" json:"defaultDuration"`

	// ProbeTimeout bounds each HTTP liveness probe
	ProbeTimeout time.Duration `yaml:"probeTimeout" json:"probeTimeout"`

	// DashboardBaseURL is the base URL reported as dashboard_url
	DashboardBaseURL string `yaml:"dashboardBaseURL" json:"dashboardBaseURL"`

	// Schedule configures recurring campaigns
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
}

// ScheduleConfig configures recurring monitoring campaigns
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`

	// Targets are the workloads sampled by each scheduled campaign
	Targets []ScheduleTarget `yaml:"targets" json:"targets"`

	// Duration of each scheduled campaign
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// ScheduleTarget identifies one workload for scheduled campaigns
type ScheduleTarget struct {
	App       string `yaml:"app" json:"app"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// PipelineConfig contains collaborator endpoints for the pipeline stages
type PipelineConfig struct {
	// AnalysisEndpoint is the LLM verdict service URL
	AnalysisEndpoint string `yaml:"analysisEndpoint" json:"analysisEndpoint"`

	// AnalysisAPIKey authenticates against the verdict service
	AnalysisAPIKey string `yaml:"analysisAPIKey" json:"analysisAPIKey"`

	// AnalysisTimeout bounds each verdict request
	AnalysisTimeout time.Duration `yaml:"analysisTimeout" json:"analysisTimeout"`

	// GitHubToken authenticates source repository lookups
	GitHubToken string `yaml:"githubToken" json:"githubToken"`

	// GitHubBaseURL overrides the API endpoint (enterprise installs, tests)
	GitHubBaseURL string `yaml:"githubBaseURL" json:"githubBaseURL"`
}

// NotificationsConfig contains chat webhook configuration
type NotificationsConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	WebhookURL string        `yaml:"webhookURL" json:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfiguration returns the default configuration
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			BindAddress:             ":8080",
			ReadTimeout:             30 * time.Second,
			WriteTimeout:            10 * time.Minute,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Kubernetes: KubernetesConfig{
			QPS:       20.0,
			Burst:     30,
			Timeout:   30 * time.Second,
			UserAgent: "shipmate-server/1.0",
		},
		Deploy: DeployConfig{
			DefaultEnvironment:    "staging",
			ReadinessTimeout:      300 * time.Second,
			ReadinessPollInterval: 5 * time.Second,
		},
		Monitoring: MonitoringConfig{
			DefaultDuration: 300 * time.Second,
			ProbeTimeout:    5 * time.Second,
			Schedule: ScheduleConfig{
				Enabled:  false,
				Cron:     "0 */6 * * *",
				Duration: 300 * time.Second,
			},
		},
		Pipeline: PipelineConfig{
			AnalysisTimeout: 60 * time.Second,
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConfigurationLoader handles loading configuration from multiple sources
type ConfigurationLoader struct {
	config *Configuration
}

// NewConfigurationLoader creates a new configuration loader
func NewConfigurationLoader() *ConfigurationLoader {
	return &ConfigurationLoader{
		config: DefaultConfiguration(),
	}
}

// LoadFromFile loads configuration from a YAML file
func (cl *ConfigurationLoader) LoadFromFile(path string) error {
	if path == "" {
		return nil // No file specified, use defaults
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", path)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is validated configuration file
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, cl.config); err != nil {
		return fmt.Errorf("failed to parse configuration file: %w", err)
	}

	return nil
}

// LoadFromEnv applies environment variable overrides
func (cl *ConfigurationLoader) LoadFromEnv() error {
	setters := map[string]func(string) error{
		"SHIPMATE_BIND_ADDRESS":            cl.setBindAddress,
		"SHIPMATE_KUBECONFIG":              cl.setKubeconfig,
		"SHIPMATE_KUBE_QPS":                cl.setKubeQPS,
		"SHIPMATE_KUBE_BURST":              cl.setKubeBurst,
		"SHIPMATE_KUBE_TIMEOUT":            cl.setKubeTimeout,
		"SHIPMATE_DEFAULT_ENVIRONMENT":     cl.setDefaultEnvironment,
		"SHIPMATE_READINESS_TIMEOUT":       cl.setReadinessTimeout,
		"SHIPMATE_READINESS_POLL_INTERVAL": cl.setReadinessPollInterval,
		"SHIPMATE_MONITORING_DURATION":     cl.setMonitoringDuration,
		"SHIPMATE_DASHBOARD_BASE_URL":      cl.setDashboardBaseURL,
		"SHIPMATE_ANALYSIS_ENDPOINT":       cl.setAnalysisEndpoint,
		"SHIPMATE_ANALYSIS_API_KEY":        cl.setAnalysisAPIKey,
		"SHIPMATE_GITHUB_TOKEN":            cl.setGitHubToken,
		"SHIPMATE_NOTIFY_WEBHOOK_URL":      cl.setNotifyWebhookURL,
		"SHIPMATE_LOG_LEVEL":               cl.setLogLevel,
		"SHIPMATE_LOG_FORMAT":              cl.setLogFormat,
	}

	for env, setter := range setters {
		value := os.Getenv(env)
		if value == "" {
			continue
		}
		if err := setter(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", env, err)
		}
	}

	return nil
}

// Load loads configuration applying file then environment overrides
func (cl *ConfigurationLoader) Load(path string) (*Configuration, error) {
	if err := cl.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cl.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cl.config.Validate(); err != nil {
		return nil, err
	}
	return cl.config, nil
}

// Config returns the currently loaded configuration
func (cl *ConfigurationLoader) Config() *Configuration {
	return cl.config
}

// Validate checks the configuration for inconsistencies and collects
// every problem into a single error
func (c *Configuration) Validate() error {
	var problems []string

	if c.Server.BindAddress == "" {
		problems = append(problems, "server.bindAddress must not be empty")
	}
	if c.Kubernetes.QPS <= 0 {
		problems = append(problems, "kubernetes.qps must be positive")
	}
	if c.Kubernetes.Burst <= 0 {
		problems = append(problems, "kubernetes.burst must be positive")
	}
	if c.Deploy.ReadinessTimeout <= 0 {
		problems = append(problems, "deploy.readinessTimeout must be positive")
	}
	if c.Deploy.ReadinessPollInterval <= 0 {
		problems = append(problems, "deploy.readinessPollInterval must be positive")
	}
	if c.Deploy.ReadinessPollInterval > c.Deploy.ReadinessTimeout {
		problems = append(problems, "deploy.readinessPollInterval must not exceed deploy.readinessTimeout")
	}
	if c.Monitoring.DefaultDuration <= 0 {
		problems = append(problems, "monitoring.defaultDuration must be positive")
	}
	if c.Monitoring.ProbeTimeout <= 0 {
		problems = append(problems, "monitoring.probeTimeout must be positive")
	}
	if c.Monitoring.Schedule.Enabled {
		if c.Monitoring.Schedule.Cron == "" {
			problems = append(problems, "monitoring.schedule.cron must be set when the schedule is enabled")
		}
		if len(c.Monitoring.Schedule.Targets) == 0 {
			problems = append(problems, "monitoring.schedule.targets must not be empty when the schedule is enabled")
		}
	}
	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" {
		problems = append(problems, "notifications.webhookURL must be set when notifications are enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (cl *ConfigurationLoader) setBindAddress(v string) error {
	cl.config.Server.BindAddress = v
	return nil
}

func (cl *ConfigurationLoader) setKubeconfig(v string) error {
	cl.config.Kubernetes.Kubeconfig = v
	return nil
}

func (cl *ConfigurationLoader) setKubeQPS(v string) error {
	qps, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return err
	}
	cl.config.Kubernetes.QPS = float32(qps)
	return nil
}

func (cl *ConfigurationLoader) setKubeBurst(v string) error {
	burst, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	cl.config.Kubernetes.Burst = burst
	return nil
}

func (cl *ConfigurationLoader) setKubeTimeout(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	cl.config.Kubernetes.Timeout = d
	return nil
}

func (cl *ConfigurationLoader) setDefaultEnvironment(v string) error {
	cl.config.Deploy.DefaultEnvironment = v
	return nil
}

func (cl *ConfigurationLoader) setReadinessTimeout(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	cl.config.Deploy.ReadinessTimeout = d
	return nil
}

func (cl *ConfigurationLoader) setReadinessPollInterval(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	cl.config.Deploy.ReadinessPollInterval = d
	return nil
}

func (cl *ConfigurationLoader) setMonitoringDuration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	cl.config.Monitoring.DefaultDuration = d
	return nil
}

func (cl *ConfigurationLoader) setDashboardBaseURL(v string) error {
	cl.config.Monitoring.DashboardBaseURL = v
	return nil
}

func (cl *ConfigurationLoader) setAnalysisEndpoint(v string) error {
	cl.config.Pipeline.AnalysisEndpoint = v
	return nil
}

func (cl *ConfigurationLoader) setAnalysisAPIKey(v string) error {
	cl.config.Pipeline.AnalysisAPIKey = v
	return nil
}

func (cl *ConfigurationLoader) setGitHubToken(v string) error {
	cl.config.Pipeline.GitHubToken = v
	return nil
}

func (cl *ConfigurationLoader) setNotifyWebhookURL(v string) error {
	cl.config.Notifications.WebhookURL = v
	cl.config.Notifications.Enabled = true
	return nil
}

func (cl *ConfigurationLoader) setLogLevel(v string) error {
	cl.config.Logging.Level = v
	return nil
}

func (cl *ConfigurationLoader) setLogFormat(v string) error {
	cl.config.Logging.Format = v
	return nil
}
