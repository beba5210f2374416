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

	"github.com/packagewjx/meshbench/internal/aggregate"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect [output.csv]",
	Short: "Show live usage and optionally record it",
	Long: "collect samples the cluster every interval and shows the breakdown without running any\n" +
		"load. With an output file, rows are written once the tracked workload is idle and until\n" +
		"the command is stopped.\n",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		r, err := newRunner(c)
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return drive(!noTUI(), func(ctx context.Context, observe func(*aggregate.Summary)) error {
			r.Observe = observe
			return r.Monitor(ctx, path)
		})
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
