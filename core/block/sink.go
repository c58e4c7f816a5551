package block

import (
	"bufio"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/aptpost/aptpost/core/invariant"
)

// Sink receives finished output lines, without line terminators.
type Sink interface {
	WriteLine(line string) error
}

// Flusher is implemented by sinks that buffer output.
type Flusher interface {
	Flush() error
}

// LineEnding terminates every line a LineSink writes.
type LineEnding string

const (
	LF   LineEnding = "\n"
	CRLF LineEnding = "\r\n"
)

// SinkError reports a failed write together with the output line number.
type SinkError struct {
	Line int
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("write output line %d: %v", e.Line, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// LineSink buffers lines to an io.Writer and keeps a BLAKE2b-256 digest of
// everything written, so two runs can be compared without keeping output.
type LineSink struct {
	w      *bufio.Writer
	ending LineEnding
	hasher hash.Hash
	lines  int
	bytes  int64
}

// SinkOpt configures a LineSink.
type SinkOpt func(*LineSink)

// WithLineEnding selects the line terminator. The default is LF.
func WithLineEnding(e LineEnding) SinkOpt {
	return func(s *LineSink) {
		s.ending = e
	}
}

// NewLineSink returns a sink writing to w.
func NewLineSink(w io.Writer, opts ...SinkOpt) *LineSink {
	invariant.NotNil(w, "writer")
	hasher, err := blake2b.New256(nil)
	invariant.ExpectNoError(err, "blake2b without key")

	s := &LineSink{
		w:      bufio.NewWriter(w),
		ending: LF,
		hasher: hasher,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteLine writes line followed by the configured line ending.
func (s *LineSink) WriteLine(line string) error {
	s.lines++
	data := line + string(s.ending)
	n, err := s.w.WriteString(data)
	s.bytes += int64(n)
	if err != nil {
		return &SinkError{Line: s.lines, Err: err}
	}
	// hash.Hash never returns an error
	_, _ = s.hasher.Write([]byte(data))
	return nil
}

// Flush writes buffered data to the underlying writer.
func (s *LineSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return &SinkError{Line: s.lines, Err: err}
	}
	return nil
}

// Lines returns the number of lines written.
func (s *LineSink) Lines() int { return s.lines }

// Bytes returns the number of bytes written, including line endings.
func (s *LineSink) Bytes() int64 { return s.bytes }

// Sum returns the BLAKE2b-256 digest of the output written so far.
func (s *LineSink) Sum() [32]byte {
	var digest [32]byte
	copy(digest[:], s.hasher.Sum(nil))
	return digest
}

// MemorySink collects lines in memory.
type MemorySink struct {
	lines []string
}

func (m *MemorySink) WriteLine(line string) error {
	m.lines = append(m.lines, line)
	return nil
}

// Lines returns a copy of the collected lines.
func (m *MemorySink) Lines() []string {
	return append([]string(nil), m.lines...)
}

// Reset drops collected lines.
func (m *MemorySink) Reset() { m.lines = m.lines[:0] }
