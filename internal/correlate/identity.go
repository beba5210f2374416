package correlate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnrecognizedName = errors.New("unrecognized file name")
	ErrMalformedReport  = errors.New("malformed report")
)

type Kind int

const (
	KindUsage Kind = iota
	KindWrk2
	KindOha
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindWrk2:
		return "wrk2"
	case KindOha:
		return "oha"
	default:
		return "unknown"
	}
}

func (k Kind) IsLatency() bool {
	return k == KindWrk2 || k == KindOha
}

// RunID names one benchmark execution.
type RunID struct {
	Mesh    string
	Variant string
	Rate    int
	Seq     int
}

func (r RunID) String() string {
	mesh := r.Mesh
	if r.Variant != "" {
		mesh += "-" + r.Variant
	}
	return fmt.Sprintf("%s/%d-%d", mesh, r.Rate, r.Seq)
}

// Identity is what a recorded file's path says about it.
type Identity struct {
	RunID
	Kind Kind
	// Shard is the load generator pod suffix of a latency log, if any.
	Shard string
}

var fileNamePattern = regexp.MustCompile(
	`^(\d+)-(\d+)-(?:(metrics\.csv)|(wrk2|oha)(?:-([a-z0-9]{5}))?\.log)$`)

// ParseIdentity reads <mesh>[-<variant>]/<rate>-<seq>-<suffix>, where the
// suffix is metrics.csv for usage or wrk2[-xxxxx].log / oha[-xxxxx].log for
// latency reports. The directory splits at its first hyphen, so mesh names
// cannot contain one: istio-ambient-00 is mesh istio, variant ambient-00.
func ParseIdentity(path string) (Identity, error) {
	file := filepath.Base(path)
	dir := filepath.Base(filepath.Dir(path))

	m := fileNamePattern.FindStringSubmatch(file)
	if m == nil {
		return Identity{}, errors.Wrap(ErrUnrecognizedName, path)
	}
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return Identity{}, errors.Wrapf(ErrUnrecognizedName, "%s has no mesh directory", path)
	}

	id := Identity{}
	id.Mesh, id.Variant = dir, ""
	if i := strings.Index(dir, "-"); i > 0 {
		id.Mesh, id.Variant = dir[:i], dir[i+1:]
	}

	var err error
	if id.Rate, err = strconv.Atoi(m[1]); err != nil {
		return Identity{}, errors.Wrapf(ErrUnrecognizedName, "%s: rate %s", path, m[1])
	}
	if id.Seq, err = strconv.Atoi(m[2]); err != nil {
		return Identity{}, errors.Wrapf(ErrUnrecognizedName, "%s: sequence %s", path, m[2])
	}

	switch {
	case m[3] != "":
		id.Kind = KindUsage
	case m[4] == "wrk2":
		id.Kind = KindWrk2
	default:
		id.Kind = KindOha
	}
	id.Shard = m[5]
	return id, nil
}
