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

package deploy

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/ahoma/shipmate/pkg/logging"
)

// AddressResolver derives a reachable endpoint for a deployed workload.
// Resolution walks an ordered strategy list and takes the first hit;
// lookup errors at a tier mean "tier not satisfied", never failure, and
// the final tier is unconditional, so Resolve always produces an
// address.
type AddressResolver struct {
	clientset  kubernetes.Interface
	log        *logging.Logger
	strategies []resolveStrategy
}

// resolveStrategy is one tier of the fallback chain. It returns the
// resolved address and whether this tier was satisfied.
type resolveStrategy func(ctx context.Context, app, namespace string) (string, bool)

// NewAddressResolver creates an address resolver
func NewAddressResolver(clientset kubernetes.Interface, log *logging.Logger) *AddressResolver {
	r := &AddressResolver{
		clientset: clientset,
		log:       log.WithName("resolver"),
	}
	r.strategies = []resolveStrategy{
		r.resolveIngress,
		r.resolveLoadBalancer,
		r.resolveClusterIP,
		r.resolveClusterDNS,
	}
	// Without cluster access only the synthesized tier can answer.
	if clientset == nil {
		r.strategies = []resolveStrategy{r.resolveClusterDNS}
	}
	return r
}

// Resolve returns the first address any tier produces
func (r *AddressResolver) Resolve(ctx context.Context, app, namespace string) string {
	for _, strategy := range r.strategies {
		if url, ok := strategy(ctx, app, namespace); ok {
			return url
		}
	}
	// Unreachable: the DNS tier is unconditional.
	return fmt.Sprintf("http://%s.%s.svc.cluster.local", ServiceName(app), namespace)
}

// resolveIngress uses the first declared host rule; https when TLS is
// configured on the ingress.
func (r *AddressResolver) resolveIngress(ctx context.Context, app, namespace string) (string, bool) {
	ingress, err := r.clientset.NetworkingV1().Ingresses(namespace).Get(ctx, IngressName(app), metav1.GetOptions{})
	if err != nil {
		return "", false
	}

	for _, rule := range ingress.Spec.Rules {
		if rule.Host == "" {
			continue
		}
		scheme := "http"
		if len(ingress.Spec.TLS) > 0 {
			scheme = "https"
		}
		return fmt.Sprintf("%s://%s", scheme, rule.Host), true
	}
	return "", false
}

// resolveLoadBalancer uses the assigned external endpoint of an
// externally load-balanced service.
func (r *AddressResolver) resolveLoadBalancer(ctx context.Context, app, namespace string) (string, bool) {
	service, err := r.clientset.CoreV1().Services(namespace).Get(ctx, ServiceName(app), metav1.GetOptions{})
	if err != nil {
		return "", false
	}
	if service.Spec.Type != corev1.ServiceTypeLoadBalancer {
		return "", false
	}
	if len(service.Status.LoadBalancer.Ingress) == 0 || len(service.Spec.Ports) == 0 {
		return "", false
	}

	endpoint := service.Status.LoadBalancer.Ingress[0]
	host := endpoint.Hostname
	if host == "" {
		host = endpoint.IP
	}
	if host == "" {
		return "", false
	}

	return fmt.Sprintf("http://%s:%d", host, service.Spec.Ports[0].Port), true
}

// resolveClusterIP uses the allocated cluster-internal address when it
// is not the headless sentinel.
func (r *AddressResolver) resolveClusterIP(ctx context.Context, app, namespace string) (string, bool) {
	service, err := r.clientset.CoreV1().Services(namespace).Get(ctx, ServiceName(app), metav1.GetOptions{})
	if err != nil {
		return "", false
	}
	if service.Spec.ClusterIP == "" || service.Spec.ClusterIP == corev1.ClusterIPNone {
		return "", false
	}
	if len(service.Spec.Ports) == 0 {
		return "", false
	}

	return fmt.Sprintf("http://%s:%d", service.Spec.ClusterIP, service.Spec.Ports[0].Port), true
}

// resolveClusterDNS synthesizes the cluster-local DNS name. Last
// resort; always satisfied.
func (r *AddressResolver) resolveClusterDNS(_ context.Context, app, namespace string) (string, bool) {
	return fmt.Sprintf("http://%s.%s.svc.cluster.local", ServiceName(app), namespace), true
}
