package block_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/aptpost/aptpost/core/block"
)

func TestLineSinkWritesAndDigests(t *testing.T) {
	var buf bytes.Buffer
	s := block.NewLineSink(&buf)
	require.NoError(t, s.WriteLine("N10 G0 X0010.0"))
	require.NoError(t, s.WriteLine("M30"))
	assert.Empty(t, buf.String(), "output is buffered until Flush")
	require.NoError(t, s.Flush())

	want := "N10 G0 X0010.0\nM30\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, s.Lines())
	assert.Equal(t, int64(len(want)), s.Bytes())
	assert.Equal(t, blake2b.Sum256([]byte(want)), s.Sum())
}

func TestLineSinkCRLF(t *testing.T) {
	var buf bytes.Buffer
	s := block.NewLineSink(&buf, block.WithLineEnding(block.CRLF))
	require.NoError(t, s.WriteLine("%"))
	require.NoError(t, s.Flush())
	assert.Equal(t, "%\r\n", buf.String())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLineSinkFlushError(t *testing.T) {
	s := block.NewLineSink(brokenWriter{})
	require.NoError(t, s.WriteLine("G0"))
	err := s.Flush()
	require.Error(t, err)

	var sinkErr *block.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, 1, sinkErr.Line)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestMemorySink(t *testing.T) {
	var m block.MemorySink
	require.NoError(t, m.WriteLine("a"))
	lines := m.Lines()
	lines[0] = "changed"
	assert.Equal(t, []string{"a"}, m.Lines())
	m.Reset()
	assert.Empty(t, m.Lines())
}
