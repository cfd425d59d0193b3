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
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/ahoma/shipmate/pkg/quantity"
)

// WorkloadSpec is the deployment portion of a deploy request
type WorkloadSpec struct {
	Replicas        int32             `json:"replicas"`
	Port            int32             `json:"port"`
	Image           string            `json:"image,omitempty"`
	CPURequest      string            `json:"cpu_request,omitempty"`
	MemoryRequest   string            `json:"memory_request,omitempty"`
	CPULimit        string            `json:"cpu_limit,omitempty"`
	MemoryLimit     string            `json:"memory_limit,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	HealthCheckPath string            `json:"health_check_path,omitempty"`
}

// ServiceSpec is the service portion of a deploy request
type ServiceSpec struct {
	Type       string `json:"type,omitempty"`
	Port       int32  `json:"port,omitempty"`
	TargetPort int32  `json:"target_port,omitempty"`
}

// IngressSpec is the ingress portion of a deploy request
type IngressSpec struct {
	Host          string `json:"host"`
	Path          string `json:"path,omitempty"`
	TLSEnabled    bool   `json:"tls_enabled,omitempty"`
	TLSSecretName string `json:"tls_secret_name,omitempty"`
}

const (
	defaultPort            = 8080
	defaultReplicas        = 1
	defaultHealthCheckPath = "/health"
)

// BuildResourceSet constructs the cluster manifests for one deploy
// request. Nil spec sections are omitted from the set.
func BuildResourceSet(app, namespace, image string, workload *WorkloadSpec, service *ServiceSpec, ingress *IngressSpec) (*ResourceSet, error) {
	set := &ResourceSet{}

	if workload != nil {
		deployment, err := buildDeployment(app, namespace, image, workload)
		if err != nil {
			return nil, err
		}
		set.Deployment = deployment
	}
	if service != nil {
		set.Service = buildService(app, namespace, service)
	}
	if ingress != nil {
		set.Ingress = buildIngress(app, namespace, ingress)
	}

	return set, nil
}

func buildDeployment(app, namespace, image string, spec *WorkloadSpec) (*appsv1.Deployment, error) {
	replicas := spec.Replicas
	if replicas <= 0 {
		replicas = defaultReplicas
	}
	port := spec.Port
	if port <= 0 {
		port = defaultPort
	}
	if spec.Image != "" {
		image = spec.Image
	}

	requirements, err := buildResourceRequirements(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid resource quantities for %s: %w", app, err)
	}

	container := corev1.Container{
		Name:      app,
		Image:     image,
		Ports:     []corev1.ContainerPort{{ContainerPort: port, Protocol: corev1.ProtocolTCP}},
		Env:       buildEnv(spec.Env),
		Resources: requirements,
	}

	healthPath := spec.HealthCheckPath
	if healthPath == "" {
		healthPath = defaultHealthCheckPath
	}
	container.ReadinessProbe = &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: healthPath,
				Port: intstr.FromInt32(port),
			},
		},
		InitialDelaySeconds: 5,
		PeriodSeconds:       10,
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      app,
			Namespace: namespace,
			Labels:    map[string]string{LabelApp: app},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{LabelApp: app},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{LabelApp: app},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{container},
				},
			},
		},
	}, nil
}

func buildService(app, namespace string, spec *ServiceSpec) *corev1.Service {
	port := spec.Port
	if port <= 0 {
		port = 80
	}
	targetPort := spec.TargetPort
	if targetPort <= 0 {
		targetPort = defaultPort
	}

	serviceType := corev1.ServiceTypeClusterIP
	switch spec.Type {
	case "LoadBalancer":
		serviceType = corev1.ServiceTypeLoadBalancer
	case "NodePort":
		serviceType = corev1.ServiceTypeNodePort
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ServiceName(app),
			Namespace: namespace,
			Labels:    map[string]string{LabelApp: app},
		},
		Spec: corev1.ServiceSpec{
			Type:     serviceType,
			Selector: map[string]string{LabelApp: app},
			Ports: []corev1.ServicePort{{
				Port:       port,
				TargetPort: intstr.FromInt32(targetPort),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

func buildIngress(app, namespace string, spec *IngressSpec) *networkingv1.Ingress {
	path := spec.Path
	if path == "" {
		path = "/"
	}
	pathType := networkingv1.PathTypePrefix

	ingress := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:      IngressName(app),
			Namespace: namespace,
			Labels:    map[string]string{LabelApp: app},
		},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{
				Host: spec.Host,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     path,
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: ServiceName(app),
									Port: networkingv1.ServiceBackendPort{Number: 80},
								},
							},
						}},
					},
				},
			}},
		},
	}

	if spec.TLSEnabled {
		secretName := spec.TLSSecretName
		if secretName == "" {
			secretName = app + "-tls"
		}
		ingress.Spec.TLS = []networkingv1.IngressTLS{{
			Hosts:      []string{spec.Host},
			SecretName: secretName,
		}}
	}

	return ingress
}

// buildResourceRequirements validates quantities through the strict
// suffix table before handing them to the cluster types.
func buildResourceRequirements(spec *WorkloadSpec) (corev1.ResourceRequirements, error) {
	if err := quantity.Validate(spec.CPURequest, spec.MemoryRequest, spec.CPULimit, spec.MemoryLimit); err != nil {
		return corev1.ResourceRequirements{}, err
	}

	requirements := corev1.ResourceRequirements{}

	requests := corev1.ResourceList{}
	if err := addResourceQuantity(requests, corev1.ResourceCPU, spec.CPURequest); err != nil {
		return corev1.ResourceRequirements{}, err
	}
	if err := addResourceQuantity(requests, corev1.ResourceMemory, spec.MemoryRequest); err != nil {
		return corev1.ResourceRequirements{}, err
	}
	if len(requests) > 0 {
		requirements.Requests = requests
	}

	limits := corev1.ResourceList{}
	if err := addResourceQuantity(limits, corev1.ResourceCPU, spec.CPULimit); err != nil {
		return corev1.ResourceRequirements{}, err
	}
	if err := addResourceQuantity(limits, corev1.ResourceMemory, spec.MemoryLimit); err != nil {
		return corev1.ResourceRequirements{}, err
	}
	if len(limits) > 0 {
		requirements.Limits = limits
	}

	return requirements, nil
}

// addResourceQuantity parses one quantity into the list. The cluster
// parser sees the trimmed form the suffix table accepted, never the raw
// request string, and its errors are returned, never panicked.
func addResourceQuantity(list corev1.ResourceList, name corev1.ResourceName, value string) error {
	if value == "" {
		return nil
	}

	q, err := quantity.Parse(value)
	if err != nil {
		return err
	}

	parsed, err := resource.ParseQuantity(q.Raw)
	if err != nil {
		return fmt.Errorf("invalid %s quantity %q: %w", name, value, err)
	}

	list[name] = parsed
	return nil
}

func buildEnv(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return out
}
