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
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/benchmark"
)

const (
	FlagOut      = "out"
	FlagLoadGen  = "loadgen"
	FlagTemplate = "template"
	FlagDuration = "duration"
	FlagWorkers  = "workers"
	FlagAffinity = "affinity"
	FlagTail     = "tail"
)

var runOut string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run rate [seq]",
	Short: "Run one load test at a fixed request rate",
	Long: "run waits for the cluster to settle, starts the load generator at the given total request\n" +
		"rate, records usage until the load finishes and the cluster drains, then saves the load\n" +
		"generator logs next to <out>/<rate>-<seq>-metrics.csv.\n",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := strconv.Atoi(args[0])
		if err != nil || rate <= 0 {
			return fmt.Errorf("rate must be a positive integer, got %q", args[0])
		}
		seq := 0
		if len(args) == 2 {
			if seq, err = strconv.Atoi(args[1]); err != nil || seq < 0 {
				return fmt.Errorf("seq must be a non-negative integer, got %q", args[1])
			}
		}

		c, err := loadConfig()
		if err != nil {
			return err
		}
		r, err := newRunner(c)
		if err != nil {
			return err
		}

		rc := c.RunTemplate()
		rc.OutDir = runOut
		rc.Rate = rate
		rc.Seq = seq
		return drive(!noTUI(), func(ctx context.Context, observe func(*aggregate.Summary)) error {
			r.Observe = observe
			files, err := r.Run(ctx, rc)
			for _, f := range files {
				klog.Infof("wrote %s", f)
			}
			return err
		})
	},
}

// addLoadFlags registers the load generator flags shared by run and sequence.
func addLoadFlags(flags *pflag.FlagSet) {
	flags.String(FlagLoadGen, benchmark.LoadGenOha, "load generator, wrk2 or oha")
	flags.String(FlagTemplate, "", "Job manifest for the load generator; empty uses the built-in one")
	flags.String(FlagDuration, benchmark.DefaultDuration, "load duration passed to the load generator")
	flags.Int(FlagWorkers, benchmark.DefaultWorkers, "number of load generator pods sharing the rate")
	flags.Bool(FlagAffinity, false, "schedule load pods on nodes labelled buoyant.io/meshtest-role=load")
	flags.Int(FlagTail, benchmark.DefaultTailSamples, "samples taken after the load finishes")
}

func bindLoadFlags(flags *pflag.FlagSet) {
	bind(flags.Lookup(FlagLoadGen), "loadgen")
	bind(flags.Lookup(FlagTemplate), "template")
	bind(flags.Lookup(FlagDuration), "duration")
	bind(flags.Lookup(FlagWorkers), "workers")
	bind(flags.Lookup(FlagAffinity), "affinity")
	bind(flags.Lookup(FlagTail), "tail")
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOut, FlagOut, "o", ".", "output directory")
	addLoadFlags(runCmd.Flags())
	runCmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindLoadFlags(cmd.Flags())
	}
}
