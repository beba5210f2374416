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
	goflag "flag"
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/config"
)

const (
	FlagConfig     = "config"
	FlagKubeconfig = "kubeconfig"
	FlagContext    = "context"
	FlagMock       = "mock"
	FlagInterval   = "interval"
	FlagTracked    = "tracked"
	FlagIdleCPU    = "idle-cpu"
	FlagIdleMemory = "idle-memory"
	FlagNoTUI      = "no-tui"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meshbench",
	Short: "Measure the resource cost of a service mesh",
	Long: "meshbench samples per-container usage from the Kubernetes metrics API while a load\n" +
		"generator drives the faces demo, splits it into application, mesh and platform\n" +
		"overhead, and correlates many runs into per-rate statistics.\n",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer klog.Flush()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	defaults := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, FlagConfig, "", "config file (default is $HOME/.meshbench.yaml)")
	flags.String(FlagKubeconfig, "", "kubeconfig file; empty uses $KUBECONFIG, then in-cluster config")
	flags.String(FlagContext, "", "kubeconfig context")
	flags.Bool(FlagMock, false, "use a simulated cluster instead of Kubernetes")
	flags.Duration(FlagInterval, defaults.Interval, "time between samples, at least 1s")
	flags.String(FlagTracked, defaults.Tracked, "workload whose usage decides when the cluster is idle")
	flags.Float64(FlagIdleCPU, defaults.Idle.CPU, "idle CPU threshold in nanocores")
	flags.Float64(FlagIdleMemory, defaults.Idle.Memory, "idle memory threshold in bytes")
	flags.Bool(FlagNoTUI, false, "print summaries instead of running the terminal display")

	bind(flags.Lookup(FlagKubeconfig), "kubeconfig")
	bind(flags.Lookup(FlagContext), "context")
	bind(flags.Lookup(FlagMock), "mock")
	bind(flags.Lookup(FlagInterval), "interval")
	bind(flags.Lookup(FlagTracked), "tracked")
	bind(flags.Lookup(FlagIdleCPU), "idle.cpu")
	bind(flags.Lookup(FlagIdleMemory), "idle.memory")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".meshbench")
	}

	viper.SetEnvPrefix("MESHBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		klog.V(1).Infof("using config file %s", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the configuration once flags have been parsed.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("configuration: %v", c)
	return c, nil
}

func noTUI() bool {
	v, _ := rootCmd.PersistentFlags().GetBool(FlagNoTUI)
	return v
}

func bind(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
