package correlate

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Percentiles are the latency fields, in column order.
var Percentiles = []string{"P50", "P75", "P90", "P95", "P99"}

var percentileCeilings = []float64{50, 75, 90, 95, 99}

const (
	nanocoresPerMilli = 1000000
	bytesPerMiB       = 1048576
)

// MetricsFile is one recorded file. Usage values are in millicores and MiB,
// latencies in milliseconds.
type MetricsFile struct {
	Identity
	Path   string
	Fields []string
	Data   map[string][]float64
	// Rate is the achieved request rate a latency report claims.
	Rate float64
}

func LoadFile(path string, r io.Reader) (*MetricsFile, error) {
	id, err := ParseIdentity(path)
	if err != nil {
		return nil, err
	}
	f := &MetricsFile{Identity: id, Path: path, Data: make(map[string][]float64)}

	switch id.Kind {
	case KindUsage:
		err = f.parseUsage(r)
	case KindWrk2:
		err = f.parseWrk2(r)
	case KindOha:
		err = f.parseOha(r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return f, nil
}

func (f *MetricsFile) parseUsage(r io.Reader) error {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return errors.Wrap(ErrMalformedReport, "reading header: "+err.Error())
	}
	for _, h := range header {
		if h != "timestamp" {
			f.Fields = append(f.Fields, h)
		}
	}

	var record []string
	line := 1
	for record, err = reader.Read(); err == nil; record, err = reader.Read() {
		line++
		for i, cell := range record {
			if i >= len(header) || header[i] == "timestamp" || cell == "" {
				continue
			}
			v, perr := strconv.ParseFloat(cell, 64)
			if perr != nil {
				return errors.Wrapf(ErrMalformedReport, "line %d column %s: %q", line, header[i], cell)
			}
			switch {
			case strings.HasSuffix(header[i], " CPU"):
				v /= nanocoresPerMilli
			case strings.HasSuffix(header[i], " mem"):
				v /= bytesPerMiB
			}
			f.Data[header[i]] = append(f.Data[header[i]], v)
		}
	}
	if err != io.EOF {
		return errors.Wrap(ErrMalformedReport, err.Error())
	}
	return nil
}

var (
	spectrumLine = regexp.MustCompile(`^\s*(\d+\.\d+)\s+(\d+\.\d+)`)
	rateLine     = regexp.MustCompile(`^\s*Requests/sec:\s*(\d+(?:\.\d+)?)`)
)

func percentileFor(bucket float64) string {
	for i, ceiling := range percentileCeilings {
		if bucket <= ceiling {
			return Percentiles[i]
		}
	}
	return ""
}

// parseWrk2 reads the detailed percentile spectrum of a wrk2 --latency
// report. Each percentile takes the latency of the last spectrum line at or
// below it.
func (f *MetricsFile) parseWrk2(r io.Reader) error {
	f.Fields = Percentiles
	const (
		searching = iota
		header
		spectrum
		done
	)
	state := searching
	rateSeen := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m := rateLine.FindStringSubmatch(line); m != nil {
			f.Rate, _ = strconv.ParseFloat(m[1], 64)
			rateSeen = true
			continue
		}

		switch state {
		case searching:
			if strings.Contains(line, "Detailed Percentile spectrum") {
				state = header
			}
		case header:
			if strings.TrimSpace(line) == "" {
				state = spectrum
			}
		case spectrum:
			if strings.HasPrefix(line, "#") {
				state = done
				continue
			}
			m := spectrumLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			latency, _ := strconv.ParseFloat(m[1], 64)
			bucket, _ := strconv.ParseFloat(m[2], 64)
			if key := percentileFor(bucket * 100); key != "" {
				f.Data[key] = []float64{latency}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading wrk2 report")
	}
	return f.checkLatency(rateSeen)
}

type ohaReport struct {
	Summary struct {
		RequestsPerSec *float64 `json:"requestsPerSec"`
	} `json:"summary"`
	LatencyPercentiles map[string]*float64 `json:"latencyPercentiles"`
}

// parseOha reads oha's --json output, which some versions print with single
// quotes and Python's None.
func (f *MetricsFile) parseOha(r io.Reader) error {
	f.Fields = Percentiles
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading oha report")
	}
	text := strings.NewReplacer("'", `"`, "None", "null").Replace(string(raw))

	report := &ohaReport{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(text, report); err != nil {
		return errors.Wrap(ErrMalformedReport, err.Error())
	}

	for key, latency := range report.LatencyPercentiles {
		name := strings.ToUpper(key)
		if latency == nil {
			continue
		}
		for _, p := range Percentiles {
			if p == name {
				f.Data[name] = []float64{*latency * 1000}
			}
		}
	}
	rateSeen := report.Summary.RequestsPerSec != nil
	if rateSeen {
		f.Rate = *report.Summary.RequestsPerSec
	}
	return f.checkLatency(rateSeen)
}

func (f *MetricsFile) checkLatency(rateSeen bool) error {
	for _, p := range Percentiles {
		if len(f.Data[p]) == 0 {
			return errors.Wrapf(ErrMalformedReport, "no %s", p)
		}
	}
	if !rateSeen {
		return errors.Wrap(ErrMalformedReport, "no request rate")
	}
	return nil
}

// LoadFiles loads files concurrently with at most workers in flight. Results
// keep the order of paths.
func LoadFiles(ctx context.Context, paths []string, workers int) ([]*MetricsFile, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*MetricsFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fin, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening metrics file")
			}
			defer fin.Close()

			f, err := LoadFile(path, fin)
			if err != nil {
				return err
			}
			klog.V(2).Infof("loaded %s: %s, %d fields", path, f.Kind, len(f.Data))
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
