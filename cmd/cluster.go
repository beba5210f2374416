/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/benchmark"
	"github.com/packagewjx/meshbench/internal/config"
	"github.com/packagewjx/meshbench/internal/datasource"
	"github.com/packagewjx/meshbench/internal/display"
	"github.com/packagewjx/meshbench/pkg/metricsclient"
)

// newRunner connects to the cluster, or to a simulated one with --mock.
func newRunner(c *config.Config) (*benchmark.Runner, error) {
	var (
		source datasource.MetricDataSource
		nodes  datasource.NodeSource
		jobs   benchmark.JobController
	)

	if c.Mock {
		mock := datasource.NewMock(time.Now().UnixNano())
		mockJobs := benchmark.NewMockJobs(mock, c.LoadGen)
		source, nodes, jobs = mock, mock, mockJobs
	} else {
		client, err := metricsclient.New(c.Kubeconfig, c.Context, c.Classify)
		if err != nil {
			return nil, err
		}
		manifest, err := c.JobTemplate()
		if err != nil {
			return nil, err
		}
		kubeJobs, err := benchmark.NewKubeJobs(client.Core(), c.LoadGen, c.Namespace, manifest)
		if err != nil {
			return nil, err
		}
		source, nodes, jobs = client, client, kubeJobs
	}

	r := benchmark.NewRunner(source, nodes, jobs, c.Aggregate())
	r.Interval = c.Interval
	r.TailSamples = c.Tail
	return r, nil
}

type producer func(ctx context.Context, observe func(*aggregate.Summary)) error

// drive runs produce until it returns, the user quits or a signal arrives.
// Summaries go to the terminal display, or to stdout when tui is false.
func drive(tui bool, produce producer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if !tui {
		err = produce(ctx, func(s *aggregate.Summary) {
			fmt.Println(display.Render(s))
		})
	} else {
		err = driveTUI(ctx, cancel, produce)
	}

	if errors.Is(err, context.Canceled) {
		klog.Info("interrupted")
		return nil
	}
	return err
}

func driveTUI(ctx context.Context, cancel context.CancelFunc, produce producer) error {
	feed := make(chan *aggregate.Summary, 1)
	errc := make(chan error, 1)
	finished := make(chan error, 1)

	go func() {
		err := produce(ctx, func(s *aggregate.Summary) {
			select {
			case feed <- s:
			case <-ctx.Done():
			}
		})
		close(feed)
		errc <- err
		finished <- err
	}()

	uiErr := display.Run(ctx, feed, errc, cancel)
	cancel()
	err := <-finished
	if err == nil {
		err = uiErr
	}
	return err
}
