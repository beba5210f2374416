package utils

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type byteCounter struct {
	w     io.Writer
	count uint64
}

func (b *byteCounter) Write(p []byte) (int, error) {
	n, err := b.w.Write(p)
	b.count += uint64(n)
	return n, err
}

// WriteRecords writes header followed by records as CSV and returns the number
// of bytes written.
func WriteRecords(out io.Writer, header []string, records [][]string) (uint64, error) {
	counter := &byteCounter{w: out}
	writer := csv.NewWriter(counter)

	if header != nil {
		if err := writer.Write(header); err != nil {
			return counter.count, errors.Wrap(err, "writing header")
		}
	}

	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return counter.count, errors.Wrap(err, fmt.Sprintf("writing record %d", i))
		}
	}

	writer.Flush()
	return counter.count, errors.Wrap(writer.Error(), "flushing csv")
}
