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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/correlate"
)

const (
	FlagLatency  = "latency"
	FlagPooled   = "pooled"
	FlagSigma    = "sigma"
	FlagDegree   = "degree"
	FlagParallel = "parallel"
)

var (
	correlateOut      string
	correlateLatency  bool
	correlatePooled   bool
	correlateParallel int
)

// correlateCmd represents the correlate command
var correlateCmd = &cobra.Command{
	Use:   "correlate file...",
	Short: "Combine recorded runs into per-rate statistics",
	Long: "correlate reads <mesh>[-<variant>]/<rate>-<seq>-metrics.csv usage files and\n" +
		"<rate>-<seq>-wrk2.log / oha.log latency reports, filters outliers, and writes datasets.csv\n" +
		"and one series-<group>.csv per plot group with points, means and a polynomial fit.\n",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		opts := correlate.DefaultOptions()
		opts.Pooled = correlatePooled
		if correlatePooled && !cmd.Flags().Changed(FlagSigma) {
			opts.Sigma = correlate.DefaultPooledSigma
		} else {
			opts.Sigma = c.Sigma
		}

		files, err := correlate.LoadFiles(context.Background(), args, correlateParallel)
		if err != nil {
			return err
		}
		klog.Infof("loaded %d files", len(files))
		cm := correlate.New(files, opts)

		if err := os.MkdirAll(correlateOut, 0755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
		if err := writeFile(filepath.Join(correlateOut, "datasets.csv"), func(f *os.File) error {
			return cm.WriteDatasets(f)
		}); err != nil {
			return err
		}

		for _, g := range correlate.DefaultGroups(correlateLatency) {
			series := cm.Plot(c.Degree, g.Fields...)
			if len(series) == 0 {
				klog.V(1).Infof("no data for %s", g.Title)
				continue
			}
			path := filepath.Join(correlateOut, "series-"+g.Slug()+".csv")
			if err := writeFile(path, func(f *os.File) error {
				return correlate.WriteSeries(f, series)
			}); err != nil {
				return err
			}
			klog.Infof("%s: %d series -> %s", g.Title, len(series), path)
		}
		return nil
	},
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(correlateCmd)

	flags := correlateCmd.Flags()
	flags.StringVarP(&correlateOut, FlagOut, "o", ".", "output directory")
	flags.BoolVar(&correlateLatency, FlagLatency, false, "also plot latency percentiles")
	flags.BoolVar(&correlatePooled, FlagPooled, false, "pool all runs of a rate before filtering, with sigma 1 unless --sigma is set")
	flags.Float64(FlagSigma, correlate.DefaultOptions().Sigma, "outlier cutoff in standard deviations")
	flags.Int(FlagDegree, 2, "degree of the fitted polynomial")
	flags.IntVar(&correlateParallel, FlagParallel, 4, "files loaded in parallel")
	bind(flags.Lookup(FlagSigma), "sigma")
	bind(flags.Lookup(FlagDegree), "degree")
}
