// Package charset decodes CL files into UTF-8.
//
// CAM systems write CL files in whatever code page the workstation uses.
// NewReader sniffs the first block of input: a byte order mark wins, valid
// UTF-8 passes through untouched, and anything else is decoded as Windows-1251
// when high bytes cluster into words (Cyrillic text) or Windows-1252 otherwise.
package charset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by Detect.
const (
	UTF8        = "utf-8"
	UTF16LE     = "utf-16le"
	UTF16BE     = "utf-16be"
	Windows1251 = "windows-1251"
	Windows1252 = "windows-1252"
)

// Auto selects detection in NewReaderFor.
const Auto = "auto"

// SampleSize is how many bytes NewReader inspects.
const SampleSize = 64 * 1024

// ErrUnknownEncoding is returned for a label no decoder is registered for.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Detect guesses the encoding of sample, which may end mid-character.
func Detect(sample []byte) (encoding.Encoding, string) {
	switch {
	case len(sample) >= 3 && sample[0] == 0xEF && sample[1] == 0xBB && sample[2] == 0xBF:
		return unicode.UTF8BOM, UTF8
	case len(sample) >= 2 && sample[0] == 0xFF && sample[1] == 0xFE:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), UTF16LE
	case len(sample) >= 2 && sample[0] == 0xFE && sample[1] == 0xFF:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), UTF16BE
	}

	if utf8.Valid(trimPartialRune(sample)) {
		return unicode.UTF8, UTF8
	}
	if looksCyrillic(sample) {
		return charmap.Windows1251, Windows1251
	}
	return charmap.Windows1252, Windows1252
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of s.
func trimPartialRune(s []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(s); i++ {
		if utf8.RuneStart(s[len(s)-i]) {
			if !utf8.FullRune(s[len(s)-i:]) {
				return s[:len(s)-i]
			}
			break
		}
	}
	return s
}

// looksCyrillic reports whether most letters in the 0xC0-0xFF range sit next
// to another one. Windows-1251 puts the whole Cyrillic alphabet there, so
// Russian words are runs of high bytes, while Western accents in Windows-1252
// mostly stand alone between ASCII letters.
func looksCyrillic(s []byte) bool {
	high, clustered := 0, 0
	for i, c := range s {
		if c < 0xC0 {
			continue
		}
		high++
		if (i > 0 && s[i-1] >= 0xC0) || (i+1 < len(s) && s[i+1] >= 0xC0) {
			clustered++
		}
	}
	return high > 0 && clustered*2 >= high
}

// NewReader returns a reader producing UTF-8 from r and the detected encoding.
func NewReader(r io.Reader) (io.Reader, string) {
	br := bufio.NewReaderSize(r, SampleSize)
	// a short or failed peek still leaves a usable sample; read errors
	// resurface on the first Read
	sample, _ := br.Peek(SampleSize)
	enc, name := Detect(sample)
	if enc == unicode.UTF8 {
		return br, name
	}
	return transform.NewReader(br, enc.NewDecoder()), name
}

// NewReaderFor decodes r using the encoding named by label, for example
// "cp1251" or "utf-16le". An empty label or Auto detects the encoding.
func NewReaderFor(r io.Reader, label string) (io.Reader, string, error) {
	if label == "" || label == Auto {
		rd, name := NewReader(r)
		return rd, name, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("%w %q", ErrUnknownEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return transform.NewReader(r, enc.NewDecoder()), name, nil
}
