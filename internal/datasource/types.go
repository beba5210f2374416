package datasource

import (
	"context"

	"github.com/packagewjx/meshbench/internal/usage"
)

// ContainerMetric is one container's usage at one tick. CPU and Memory are
// left as the raw quantity strings the metrics API reports.
type ContainerMetric struct {
	PodID     string
	Pod       string
	Container string
	Namespace string
	Node      string
	CPU       string
	Memory    string
}

type MetricDataSource interface {
	// Snapshot returns every container's usage at the time of the call.
	Snapshot(ctx context.Context) ([]*ContainerMetric, error)
}

type NodeSource interface {
	// Nodes returns the cluster nodes with their allocatable capacity.
	Nodes(ctx context.Context) ([]*usage.Node, error)
}
