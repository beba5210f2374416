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

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/benchmark"
)

const (
	FlagRates = "rates"
	FlagRuns  = "runs"
	FlagLoops = "loops"
)

var (
	sequenceOut   string
	sequenceRates []int
	sequenceRuns  int
	sequenceLoops int
)

// sequenceCmd represents the sequence command
var sequenceCmd = &cobra.Command{
	Use:   "sequence mesh",
	Short: "Run load tests over a range of rates",
	Long: "sequence repeats run for every rate, runs times per rate, loops times over. Loop n writes\n" +
		"to <out>/<mesh>-<nn>, the directory layout correlate reads the mesh name from.\n",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		s := benchmark.Sequence{
			Mesh:     args[0],
			OutDir:   sequenceOut,
			Rates:    sequenceRates,
			Runs:     sequenceRuns,
			Loops:    sequenceLoops,
			Template: c.RunTemplate(),
		}
		if err := s.Validate(); err != nil {
			return err
		}
		r, err := newRunner(c)
		if err != nil {
			return err
		}

		return drive(!noTUI(), func(ctx context.Context, observe func(*aggregate.Summary)) error {
			r.Observe = observe
			files, err := benchmark.RunSequence(ctx, r, s)
			klog.Infof("sequence wrote %d files under %s", len(files), s.OutDir)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(sequenceCmd)

	flags := sequenceCmd.Flags()
	flags.StringVarP(&sequenceOut, FlagOut, "o", ".", "output directory")
	flags.IntSliceVar(&sequenceRates, FlagRates, benchmark.DefaultRates, "total request rates to test")
	flags.IntVar(&sequenceRuns, FlagRuns, benchmark.DefaultRuns, "runs per rate")
	flags.IntVar(&sequenceLoops, FlagLoops, benchmark.DefaultLoops, "passes over all rates")
	addLoadFlags(flags)
	sequenceCmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindLoadFlags(cmd.Flags())
	}
}
