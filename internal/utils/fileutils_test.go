package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteRecords(t *testing.T) {
	builder := &strings.Builder{}
	n, err := WriteRecords(builder, []string{"series", "x", "y"}, [][]string{
		{"linkerd data-plane CPU", "120", "4.50"},
		{"ambient data-plane CPU", "120", "3.25"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "series,x,y\nlinkerd data-plane CPU,120,4.50\nambient data-plane CPU,120,3.25\n", builder.String())
	assert.Equal(t, uint64(builder.Len()), n)
}

func TestWriteRecords_NoHeader(t *testing.T) {
	builder := &strings.Builder{}
	_, err := WriteRecords(builder, nil, [][]string{{"1", "2"}})
	assert.NoError(t, err)
	assert.Equal(t, "1,2\n", builder.String())
}
