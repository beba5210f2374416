package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/benchmark"
	"github.com/packagewjx/meshbench/internal/classify"
	"github.com/packagewjx/meshbench/internal/correlate"
)

const minInterval = time.Second

type Idle struct {
	CPU    float64 `mapstructure:"cpu"`    // nanocores
	Memory float64 `mapstructure:"memory"` // bytes
}

// Config is everything the commands read from flags, the config file and
// MESHBENCH_ environment variables.
type Config struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
	Mock       bool   `mapstructure:"mock"`

	Interval time.Duration `mapstructure:"interval"` // time between samples, at least 1s
	Tail     int           `mapstructure:"tail"`     // samples taken after the load finishes
	Tracked  string        `mapstructure:"tracked"`
	Idle     Idle          `mapstructure:"idle"`

	LoadGen   string `mapstructure:"loadgen"`
	Template  string `mapstructure:"template"` // Job manifest; empty uses the built-in one
	Namespace string `mapstructure:"namespace"`
	Duration  string `mapstructure:"duration"`
	Workers   int    `mapstructure:"workers"`
	Affinity  bool   `mapstructure:"affinity"`

	Sigma  float64 `mapstructure:"sigma"`
	Degree int     `mapstructure:"degree"`

	Classify classify.Config `mapstructure:"classify"`
}

func Default() *Config {
	agg := aggregate.DefaultConfig()
	return &Config{
		Interval:  benchmark.DefaultInterval,
		Tail:      benchmark.DefaultTailSamples,
		Tracked:   agg.Tracked,
		Idle:      Idle{CPU: agg.IdleCPUNanocores, Memory: agg.IdleMemoryBytes},
		LoadGen:   benchmark.LoadGenOha,
		Namespace: "faces",
		Duration:  benchmark.DefaultDuration,
		Workers:   benchmark.DefaultWorkers,
		Sigma:     correlate.DefaultOptions().Sigma,
		Degree:    2,
		Classify:  classify.DefaultConfig(),
	}
}

func (c Config) String() string {
	marshal, _ := json.Marshal(c)
	return string(marshal)
}

// SetDefaults registers every default with v so that the config file, the
// environment and flags all layer over the same values.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("interval", d.Interval)
	v.SetDefault("tail", d.Tail)
	v.SetDefault("tracked", d.Tracked)
	v.SetDefault("idle.cpu", d.Idle.CPU)
	v.SetDefault("idle.memory", d.Idle.Memory)
	v.SetDefault("loadgen", d.LoadGen)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("sigma", d.Sigma)
	v.SetDefault("degree", d.Degree)

	cls := d.Classify
	v.SetDefault("classify.meshControlNamespace", cls.MeshControlNamespace)
	v.SetDefault("classify.sidecars", cls.SidecarContainers)
	v.SetDefault("classify.meshWorkloads", cls.MeshWorkloads)
	v.SetDefault("classify.trafficClients", cls.TrafficClients)
	v.SetDefault("classify.loadGenerators", cls.LoadGenerators)
	v.SetDefault("classify.appNamespace", cls.AppNamespace)
	v.SetDefault("classify.meshSystemNamespaces", cls.MeshSystemNamespaces)
	v.SetDefault("classify.platformNamespaces", cls.PlatformNamespaces)
	v.SetDefault("classify.kubeNamespaces", cls.KubeNamespaces)
	v.SetDefault("classify.singletons", cls.SingletonPrefixes)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	if err := c.Complete(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Complete() error {
	if c.Interval < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, c.Interval)
	}
	if c.Tail < 0 {
		return fmt.Errorf("tail samples must not be negative, got %d", c.Tail)
	}
	if c.Idle.CPU <= 0 || c.Idle.Memory <= 0 {
		return fmt.Errorf("idle thresholds must be positive, got %g nanocores and %g bytes", c.Idle.CPU, c.Idle.Memory)
	}
	if c.Tracked == "" {
		return fmt.Errorf("tracked workload must not be empty")
	}
	if c.Sigma <= 0 {
		return fmt.Errorf("sigma must be positive, got %g", c.Sigma)
	}
	if c.Degree < 0 {
		return fmt.Errorf("fit degree must not be negative, got %d", c.Degree)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := benchmark.Command(c.LoadGen, 1, c.Duration); err != nil {
		return err
	}

	if c.Kubeconfig == "" {
		c.Kubeconfig = os.Getenv("KUBECONFIG")
	}
	return nil
}

// Aggregate is the aggregator configuration these settings describe.
func (c *Config) Aggregate() aggregate.Config {
	agg := aggregate.DefaultConfig()
	agg.Classify = c.Classify
	agg.Tracked = c.Tracked
	agg.IdleCPUNanocores = c.Idle.CPU
	agg.IdleMemoryBytes = c.Idle.Memory
	return agg
}

// JobTemplate reads the configured Job manifest, falling back to the built-in
// one for the load generator.
func (c *Config) JobTemplate() ([]byte, error) {
	if c.Template == "" {
		return benchmark.DefaultTemplate(c.LoadGen)
	}
	b, err := os.ReadFile(c.Template)
	if err != nil {
		return nil, errors.Wrap(err, "reading job template")
	}
	return b, nil
}

// RunTemplate carries the per-run load settings.
func (c *Config) RunTemplate() benchmark.RunConfig {
	return benchmark.RunConfig{
		Duration: c.Duration,
		Workers:  c.Workers,
		Affinity: c.Affinity,
	}
}
