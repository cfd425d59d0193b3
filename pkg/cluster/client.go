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

// Package cluster manages access to the Kubernetes API. Construction
// never fails: when no usable configuration can be found the returned
// handle reports itself unavailable with the reason, and every caller
// that needs cluster access checks the handle instead of discovering a
// nil client deep in a call chain.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
)

// ErrUnavailable is returned by Clientset when the handle was
// constructed without working cluster access.
var ErrUnavailable = errors.New("cluster access unavailable")

// Config contains Kubernetes client configuration
type Config struct {
	Kubeconfig string
	QPS        float32
	Burst      int
	Timeout    time.Duration
	UserAgent  string
}

// DefaultConfig returns default Kubernetes client configuration
func DefaultConfig() *Config {
	return &Config{
		QPS:       20.0,
		Burst:     30,
		Timeout:   30 * time.Second,
		UserAgent: "shipmate-server/1.0",
	}
}

// Client is the capability handle for cluster access
type Client struct {
	config     *Config
	restConfig *rest.Config
	clientset  kubernetes.Interface
	available  bool
	reason     string
}

// New builds a cluster client handle. A handle is always returned; when
// configuration or client construction fails it is marked unavailable
// and carries the failure reason.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Client{config: config}

	restConfig, err := c.buildRESTConfig()
	if err != nil {
		c.reason = fmt.Sprintf("failed to load kubernetes configuration: %v", err)
		return c
	}
	c.restConfig = restConfig

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		c.reason = fmt.Sprintf("failed to create kubernetes client: %v", err)
		return c
	}

	c.clientset = clientset
	c.available = true
	return c
}

// NewFromClientset builds an available handle around an existing
// clientset. Intended for tests and fake clients.
func NewFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{
		config:    DefaultConfig(),
		clientset: clientset,
		available: true,
	}
}

// NewUnavailable builds a handle that always refuses access with the
// given reason.
func NewUnavailable(reason string) *Client {
	return &Client{
		config: DefaultConfig(),
		reason: reason,
	}
}

// Available reports whether cluster access works
func (c *Client) Available() bool {
	return c.available
}

// Reason returns the unavailability reason, empty when available
func (c *Client) Reason() string {
	return c.reason
}

// Clientset returns the Kubernetes clientset or ErrUnavailable
func (c *Client) Clientset() (kubernetes.Interface, error) {
	if !c.available {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, c.reason)
	}
	return c.clientset, nil
}

// RESTConfig returns the REST configuration, nil when unavailable
func (c *Client) RESTConfig() *rest.Config {
	return c.restConfig
}

// Ping verifies the API server responds. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	clientset, err := c.Clientset()
	if err != nil {
		return err
	}

	_, err = clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("kubernetes API unreachable: %w", err)
	}
	return nil
}

// buildRESTConfig resolves the REST configuration from an explicit
// kubeconfig path, falling back to the in-cluster or default loading
// rules.
func (c *Client) buildRESTConfig() (*rest.Config, error) {
	var restConfig *rest.Config
	var err error

	if c.config.Kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", c.config.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig from %s: %w", c.config.Kubeconfig, err)
		}
	} else {
		restConfig, err = ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
		}
	}

	restConfig.QPS = c.config.QPS
	restConfig.Burst = c.config.Burst
	restConfig.Timeout = c.config.Timeout
	restConfig.UserAgent = c.config.UserAgent

	return restConfig, nil
}
