package utils

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/resource"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

var cpuSuffixes = map[string]struct{}{
	"": {}, "n": {}, "u": {}, "m": {},
}

var memorySuffixes = map[string]struct{}{
	"":   {},
	"k":  {}, "K": {}, "M": {}, "G": {}, "T": {}, "P": {}, "E": {},
	"Ki": {}, "Mi": {}, "Gi": {}, "Ti": {}, "Pi": {}, "Ei": {},
}

// ParseNanocores converts a CPU usage string such as "12345n", "250m" or "2"
// into nanocores.
func ParseNanocores(cpu string) (int64, error) {
	q, err := parseQuantity(cpu, cpuSuffixes)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid CPU value: %q", cpu)
	}
	return q.ScaledValue(resource.Nano), nil
}

// ParseBytes converts a memory usage string into bytes. Binary suffixes
// (Ki..Ei) are powers of 1024, decimal suffixes (K..E) powers of 1000.
func ParseBytes(memory string) (int64, error) {
	q, err := parseQuantity(memory, memorySuffixes)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid memory value: %q", memory)
	}
	return q.Value(), nil
}

func parseQuantity(s string, allowed map[string]struct{}) (resource.Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return resource.Quantity{}, ErrInvalidQuantity
	}

	suffix := trailingLetters(s)
	if _, ok := allowed[suffix]; !ok {
		return resource.Quantity{}, ErrInvalidQuantity
	}
	if !strings.ContainsAny(s[:len(s)-len(suffix)], "0123456789") {
		return resource.Quantity{}, ErrInvalidQuantity
	}
	if suffix == "K" {
		// apimachinery only knows the lower-case SI kilo
		s = s[:len(s)-1] + "k"
	}

	q, err := resource.ParseQuantity(s)
	if err != nil {
		return resource.Quantity{}, errors.Wrap(ErrInvalidQuantity, err.Error())
	}
	return q, nil
}

func trailingLetters(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		i--
	}
	return s[i:]
}
