package correlate

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usageCSV = `timestamp,faces CPU,faces mem,data-plane CPU,data-plane mem
2024-05-01 12:00:00,20000000,31457280,5000000,10485760
2024-05-01 12:00:01,40000000,41943040,,
2024-05-01 12:00:02,30000000,36700160,7000000,12582912
`

const wrk2Report = `Running 30s test @ http://face/
  8 threads and 200 connections
  Thread calibration: mean lat.: 1.234ms, rate sampling interval: 10ms
  Latency Distribution (HdrHistogram - Recorded Latency)
 50.000%    1.20ms
 75.000%    1.50ms

  Detailed Percentile spectrum:
       Value   Percentile   TotalCount 1/(1-Percentile)

       0.500     0.000000            1         1.00
       1.000     0.250000         1000         1.33
       1.200     0.500000         2000         2.00
       1.500     0.750000         3000         4.00
       2.000     0.900000         3600        10.00
       2.500     0.950000         3800        20.00
       4.000     0.990000         3960       100.00
       9.000     1.000000         4000          inf
#[Mean    =        1.300, StdDeviation   =        0.500]
#[Max     =        9.000, Total count    =         4000]
#[Buckets =           27, SubBuckets     =         2048]
----------------------------------------------------------
  4000 requests in 30.00s, 1.00MB read
Requests/sec:    133.33
Transfer/sec:     34.00KB
`

const ohaReportText = `{'summary': {'successRate': 1.0, 'total': 30.0, 'slowest': 0.02, 'requestsPerSec': 99.5, 'averageNsPerRequest': None}, 'latencyPercentiles': {'p10': 0.001, 'p25': 0.0015, 'p50': 0.002, 'p75': 0.003, 'p90': 0.004, 'p95': 0.005, 'p99': 0.006, 'p99.9': 0.01}}`

func TestLoadFile_Usage(t *testing.T) {
	f, err := LoadFile("linkerd-00/600-1-metrics.csv", strings.NewReader(usageCSV))
	require.NoError(t, err)
	assert.Equal(t, KindUsage, f.Kind)
	assert.Equal(t, []string{"faces CPU", "faces mem", "data-plane CPU", "data-plane mem"}, f.Fields)
	assert.Equal(t, []float64{20, 40, 30}, f.Data["faces CPU"])
	assert.Equal(t, []float64{30, 40, 35}, f.Data["faces mem"])
	assert.Equal(t, []float64{5, 7}, f.Data["data-plane CPU"])
	assert.Equal(t, []float64{10, 12}, f.Data["data-plane mem"])
}

func TestLoadFile_UsageBadCell(t *testing.T) {
	_, err := LoadFile("linkerd/600-1-metrics.csv", strings.NewReader("timestamp,faces CPU\nx,abc\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))
	assert.Contains(t, err.Error(), "abc")
}

func TestLoadFile_Wrk2(t *testing.T) {
	f, err := LoadFile("linkerd/100-1-wrk2-x7k2p.log", strings.NewReader(wrk2Report))
	require.NoError(t, err)
	assert.Equal(t, KindWrk2, f.Kind)
	assert.Equal(t, []float64{1.2}, f.Data["P50"])
	assert.Equal(t, []float64{1.5}, f.Data["P75"])
	assert.Equal(t, []float64{2.0}, f.Data["P90"])
	assert.Equal(t, []float64{2.5}, f.Data["P95"])
	assert.Equal(t, []float64{4.0}, f.Data["P99"])
	assert.InDelta(t, 133.33, f.Rate, 1e-9)
}

func TestLoadFile_Wrk2Malformed(t *testing.T) {
	noSpectrum := "Requests/sec: 10.0\n"
	_, err := LoadFile("linkerd/100-1-wrk2.log", strings.NewReader(noSpectrum))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))

	noRate := strings.Replace(wrk2Report, "Requests/sec:    133.33\n", "", 1)
	_, err = LoadFile("linkerd/100-1-wrk2.log", strings.NewReader(noRate))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))
}

func TestLoadFile_Oha(t *testing.T) {
	f, err := LoadFile("ambient/100-1-oha-ab12c.log", strings.NewReader(ohaReportText))
	require.NoError(t, err)
	assert.Equal(t, KindOha, f.Kind)
	assert.InDelta(t, 2.0, f.Data["P50"][0], 1e-9)
	assert.InDelta(t, 3.0, f.Data["P75"][0], 1e-9)
	assert.InDelta(t, 6.0, f.Data["P99"][0], 1e-9)
	assert.Len(t, f.Data, 5)
	assert.InDelta(t, 99.5, f.Rate, 1e-9)
}

func TestLoadFile_OhaMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        "oops",
		"no percentiles":  `{'summary': {'requestsPerSec': 1.0}}`,
		"null percentile": `{'summary': {'requestsPerSec': 1.0}, 'latencyPercentiles': {'p50': None, 'p75': 1, 'p90': 1, 'p95': 1, 'p99': 1}}`,
		"no rate":         `{'summary': {}, 'latencyPercentiles': {'p50': 1, 'p75': 1, 'p90': 1, 'p95': 1, 'p99': 1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile("ambient/100-1-oha.log", strings.NewReader(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedReport))
		})
	}
}

func TestLoadFile_UnrecognizedName(t *testing.T) {
	_, err := LoadFile("ambient/notes.txt", strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnrecognizedName))
}

func writeFile(t *testing.T, dir, rel, body string) string {
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "linkerd-00/100-1-metrics.csv", usageCSV),
		writeFile(t, dir, "linkerd-00/100-1-wrk2-x7k2p.log", wrk2Report),
		writeFile(t, dir, "ambient-00/100-1-oha-ab12c.log", ohaReportText),
	}

	files, err := LoadFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, f := range files {
		assert.Equal(t, paths[i], f.Path)
	}
	assert.Equal(t, KindUsage, files[0].Kind)
	assert.Equal(t, KindWrk2, files[1].Kind)
	assert.Equal(t, KindOha, files[2].Kind)
}

func TestLoadFiles_FailsOnBadFile(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "linkerd/100-1-metrics.csv", usageCSV),
		writeFile(t, dir, "linkerd/100-1-oha.log", "garbage"),
	}
	_, err := LoadFiles(context.Background(), paths, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))

	_, err = LoadFiles(context.Background(), []string{filepath.Join(dir, "linkerd/1-1-metrics.csv")}, 1)
	assert.Error(t, err)
}
