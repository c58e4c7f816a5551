// Package clfile stores lexed APT commands in a compact binary stream so a
// large CL file can be parsed once and post-processed many times.
//
// Format: MAGIC(4) | VERSION(2) | FLAGS(2) | RECORD*
//
// Each record is one canonical CBOR map holding a command. The stream digest
// is the BLAKE2b-256 hash of the record bytes, so the same commands always
// hash the same regardless of who wrote them.
package clfile

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/invariant"
)

const (
	// Magic is the file magic number "APCL" (4 bytes)
	Magic = "APCL"

	// Version is the format version (uint16, little-endian)
	Version uint16 = 0x0001

	preambleLen = 8
)

// Flags is a bitmask for optional features. No flags are defined yet.
type Flags uint16

// ErrFormat is wrapped by every error caused by a malformed stream.
var ErrFormat = errors.New("invalid command stream")

// record is the on-disk form of apt.Command.
type record struct {
	Major   string    `cbor:"1,keyasint"`
	Minor   []string  `cbor:"2,keyasint,omitempty"`
	Numeric []float64 `cbor:"3,keyasint,omitempty"`
	Strings []string  `cbor:"4,keyasint,omitempty"`
	Line    int       `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	invariant.ExpectNoError(err, "canonical CBOR encoder")

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxArrayElements:  1 << 20,
		MaxNestedLevels:   4,
	}.DecMode()
	invariant.ExpectNoError(err, "CBOR decoder")
}

func newHasher() hash.Hash {
	h, err := blake2b.New256(nil)
	invariant.ExpectNoError(err, "blake2b without key")
	return h
}

func sum(h hash.Hash) [32]byte {
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// Writer appends commands to a stream.
type Writer struct {
	w       io.Writer
	hasher  hash.Hash
	started bool
	count   int
}

// NewWriter returns a Writer for w. The preamble is written with the first
// command, or by Close for an empty stream.
func NewWriter(w io.Writer) *Writer {
	invariant.NotNil(w, "writer")
	return &Writer{w: w, hasher: newHasher()}
}

func (wr *Writer) writePreamble() error {
	if wr.started {
		return nil
	}
	wr.started = true
	var preamble [preambleLen]byte
	copy(preamble[:4], Magic)
	binary.LittleEndian.PutUint16(preamble[4:6], Version)
	binary.LittleEndian.PutUint16(preamble[6:8], uint16(Flags(0)))
	if _, err := wr.w.Write(preamble[:]); err != nil {
		return fmt.Errorf("write preamble: %w", err)
	}
	return nil
}

// Write appends one command.
func (wr *Writer) Write(cmd apt.Command) error {
	if err := wr.writePreamble(); err != nil {
		return err
	}
	data, err := encMode.Marshal(record(cmd))
	if err != nil {
		return fmt.Errorf("encode command at line %d: %w", cmd.Line, err)
	}
	if _, err := wr.w.Write(data); err != nil {
		return fmt.Errorf("write command %d: %w", wr.count+1, err)
	}
	_, _ = wr.hasher.Write(data)
	wr.count++
	return nil
}

// Count returns the number of commands written.
func (wr *Writer) Count() int { return wr.count }

// Close finishes the stream and returns its digest. It does not close the
// underlying writer.
func (wr *Writer) Close() ([32]byte, error) {
	if err := wr.writePreamble(); err != nil {
		return [32]byte{}, err
	}
	return sum(wr.hasher), nil
}

// Reader reads commands back from a stream.
type Reader struct {
	dec    *cbor.Decoder
	hasher hash.Hash
	count  int
	done   bool
}

// NewReader reads and checks the preamble of r.
func NewReader(r io.Reader) (*Reader, error) {
	invariant.NotNil(r, "reader")

	var preamble [preambleLen]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, fmt.Errorf("%w: read preamble: %w", ErrFormat, err)
	}
	if magic := string(preamble[:4]); magic != Magic {
		return nil, fmt.Errorf("%w: invalid magic: got %q, expected %q", ErrFormat, magic, Magic)
	}
	if version := binary.LittleEndian.Uint16(preamble[4:6]); version != Version {
		return nil, fmt.Errorf("%w: unsupported version: got 0x%04x, expected 0x%04x", ErrFormat, version, Version)
	}
	if flags := Flags(binary.LittleEndian.Uint16(preamble[6:8])); flags != 0 {
		return nil, fmt.Errorf("%w: unsupported flags: 0x%04x", ErrFormat, flags)
	}

	return &Reader{dec: decMode.NewDecoder(r), hasher: newHasher()}, nil
}

// Next returns the next command, or io.EOF after the last one.
func (rd *Reader) Next(ctx context.Context) (apt.Command, error) {
	if rd.done {
		return apt.Command{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return apt.Command{}, fmt.Errorf("%w: %w", apt.ErrCancelled, err)
	}

	var raw cbor.RawMessage
	if err := rd.dec.Decode(&raw); err != nil {
		rd.done = true
		if errors.Is(err, io.EOF) {
			return apt.Command{}, io.EOF
		}
		return apt.Command{}, fmt.Errorf("%w: record %d: %w", ErrFormat, rd.count+1, err)
	}

	var rec record
	if err := decMode.Unmarshal(raw, &rec); err != nil {
		rd.done = true
		return apt.Command{}, fmt.Errorf("%w: record %d: %w", ErrFormat, rd.count+1, err)
	}
	if rec.Major == "" {
		rd.done = true
		return apt.Command{}, fmt.Errorf("%w: record %d has no major word", ErrFormat, rd.count+1)
	}

	_, _ = rd.hasher.Write(raw)
	rd.count++
	return apt.Command(rec), nil
}

// Count returns the number of commands read.
func (rd *Reader) Count() int { return rd.count }

// Sum returns the digest of the records read so far. After io.EOF it equals
// the digest the Writer returned from Close.
func (rd *Reader) Sum() [32]byte { return sum(rd.hasher) }

// Source yields commands, as *apt.Lexer and *Reader do.
type Source interface {
	Next(ctx context.Context) (apt.Command, error)
}

// Encode drains src into w and returns the stream digest.
func Encode(ctx context.Context, w io.Writer, src Source) ([32]byte, int, error) {
	wr := NewWriter(w)
	for {
		cmd, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return [32]byte{}, wr.Count(), err
		}
		if err := wr.Write(cmd); err != nil {
			return [32]byte{}, wr.Count(), err
		}
	}
	digest, err := wr.Close()
	return digest, wr.Count(), err
}
