package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Complete(t *testing.T) {
	c := Default()
	require.NoError(t, c.Complete())
	assert.Equal(t, 10*time.Second, c.Interval)
	assert.Equal(t, 6, c.Tail)
	assert.Equal(t, "oha", c.LoadGen)
	assert.Equal(t, 2.0, c.Sigma)
}

func TestComplete_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"short interval":  func(c *Config) { c.Interval = 500 * time.Millisecond },
		"negative tail":   func(c *Config) { c.Tail = -1 },
		"zero idle cpu":   func(c *Config) { c.Idle.CPU = 0 },
		"zero idle mem":   func(c *Config) { c.Idle.Memory = 0 },
		"no tracked":      func(c *Config) { c.Tracked = "" },
		"zero sigma":      func(c *Config) { c.Sigma = 0 },
		"negative degree": func(c *Config) { c.Degree = -1 },
		"no workers":      func(c *Config) { c.Workers = 0 },
		"bad loadgen":     func(c *Config) { c.LoadGen = "ab" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Complete())
		})
	}
}

func TestComplete_ZeroTailAndDegree(t *testing.T) {
	c := Default()
	c.Tail = 0
	c.Degree = 0
	assert.NoError(t, c.Complete())
}

func TestLoad(t *testing.T) {
	v := viper.New()
	v.Set("interval", "30s")
	v.Set("idle.cpu", 5e7)
	v.Set("tracked", "shop")
	v.Set("loadgen", "wrk2")
	v.Set("classify.sidecars", []string{"envoy"})
	v.Set("classify.appNamespace", "shop")

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Interval)
	assert.Equal(t, 5e7, c.Idle.CPU)
	assert.Equal(t, Default().Idle.Memory, c.Idle.Memory)
	assert.Equal(t, "wrk2", c.LoadGen)
	assert.Equal(t, []string{"envoy"}, c.Classify.SidecarContainers)
	assert.Equal(t, "shop", c.Classify.AppNamespace)
	assert.Equal(t, "linkerd", c.Classify.MeshControlNamespace)

	agg := c.Aggregate()
	assert.Equal(t, "shop", agg.Tracked)
	assert.Equal(t, 5e7, agg.IdleCPUNanocores)
	assert.Equal(t, []string{"envoy"}, agg.Classify.SidecarContainers)
	assert.NotEmpty(t, agg.Categories)
}

func TestLoad_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("sigma", -1)
	_, err := Load(v)
	assert.Error(t, err)
}

func TestJobTemplate(t *testing.T) {
	c := Default()
	b, err := c.JobTemplate()
	require.NoError(t, err)
	assert.Contains(t, string(b), "name: oha")

	path := filepath.Join(t.TempDir(), "oha.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: Job\n"), 0644))
	c.Template = path
	b, err = c.JobTemplate()
	require.NoError(t, err)
	assert.Equal(t, "kind: Job\n", string(b))

	c.Template = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = c.JobTemplate()
	assert.Error(t, err)
}

func TestRunTemplate(t *testing.T) {
	c := Default()
	c.Workers = 4
	c.Affinity = true
	rc := c.RunTemplate()
	assert.Equal(t, 4, rc.Workers)
	assert.True(t, rc.Affinity)
	assert.Equal(t, "1800s", rc.Duration)
}
