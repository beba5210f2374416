package metricsclient

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/packagewjx/meshbench/internal/classify"
	"github.com/packagewjx/meshbench/internal/datasource"
	"github.com/packagewjx/meshbench/internal/usage"
)

// Client reads container usage from metrics.k8s.io and joins it with the pod
// objects for node placement and logical pod ids.
type Client struct {
	core     kubernetes.Interface
	metrics  metricsclient.Interface
	resolver *classify.PodResolver
}

var (
	_ datasource.MetricDataSource = &Client{}
	_ datasource.NodeSource       = &Client{}
)

// New connects using the in-cluster config when available, otherwise the
// given kubeconfig and context. Empty values mean the client-go defaults.
func New(kubeconfigPath, contextName string, cfg classify.Config) (*Client, error) {
	restConfig, err := LoadRESTConfig(kubeconfigPath, contextName)
	if err != nil {
		return nil, errors.Wrap(err, "loading kubeconfig")
	}
	restConfig.QPS = 30
	restConfig.Burst = 60

	core, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "creating core client")
	}
	m, err := metricsclient.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "creating metrics client")
	}
	return NewForClientsets(core, m, cfg), nil
}

func NewForClientsets(core kubernetes.Interface, metrics metricsclient.Interface, cfg classify.Config) *Client {
	return &Client{core: core, metrics: metrics, resolver: classify.NewPodResolver(cfg)}
}

func LoadRESTConfig(kubeconfigPath, contextName string) (*rest.Config, error) {
	if kubeconfigPath == "" && contextName == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = kubeconfigPath
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

// Core exposes the core clientset for callers that manage workloads.
func (c *Client) Core() kubernetes.Interface {
	return c.core
}

func (c *Client) Snapshot(ctx context.Context) ([]*datasource.ContainerMetric, error) {
	pms, err := c.metrics.MetricsV1beta1().PodMetricses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing pod metrics")
	}
	pods, err := c.core.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing pods")
	}

	byName := make(map[string]*corev1.Pod, len(pods.Items))
	for i := range pods.Items {
		p := &pods.Items[i]
		byName[p.Namespace+"/"+p.Name] = p
	}

	out := make([]*datasource.ContainerMetric, 0, 2*len(pms.Items))
	for i := range pms.Items {
		pm := &pms.Items[i]

		var meta classify.PodMeta = pm
		node := ""
		if p, ok := byName[pm.Namespace+"/"+pm.Name]; ok {
			meta = p
			node = p.Spec.NodeName
		} else {
			klog.V(2).Infof("pod %s/%s has metrics but no pod object", pm.Namespace, pm.Name)
		}

		id, err := c.resolver.Resolve(meta)
		if err != nil {
			return nil, err
		}

		for _, cm := range pm.Containers {
			out = append(out, &datasource.ContainerMetric{
				PodID:     id,
				Pod:       pm.Name,
				Container: cm.Name,
				Namespace: pm.Namespace,
				Node:      node,
				CPU:       quantityString(cm.Usage, corev1.ResourceCPU),
				Memory:    quantityString(cm.Usage, corev1.ResourceMemory),
			})
		}
	}
	return out, nil
}

func quantityString(list corev1.ResourceList, name corev1.ResourceName) string {
	q, ok := list[name]
	if !ok {
		return "0"
	}
	return q.String()
}

func (c *Client) Nodes(ctx context.Context) ([]*usage.Node, error) {
	nodes, err := c.core.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing nodes")
	}

	out := make([]*usage.Node, 0, len(nodes.Items))
	for _, n := range nodes.Items {
		out = append(out, &usage.Node{
			Name:              n.Name,
			AllocatableCPU:    n.Status.Allocatable.Cpu().ScaledValue(resource.Nano),
			AllocatableMemory: n.Status.Allocatable.Memory().Value(),
		})
	}
	return out, nil
}
