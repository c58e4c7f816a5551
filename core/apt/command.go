// Package apt reads APT/CL, the line-oriented cutter location language CAM
// systems emit, into a stream of Commands.
//
// A statement is a major word, an optional "/" and a comma separated
// parameter list:
//
//	GOTO/10.0, 20.0, 30.0
//	SPINDL/ON, CLW, 1200
//	PARTNO/'BRACKET-01'
//
// A trailing "$" continues a statement on the next line and "$$" starts a
// comment. Lines that start with anything but a letter carry extra
// parameters for the previous statement and are reported with the major
// word "continuation".
package apt

import (
	"slices"
	"strconv"
	"strings"
)

// Continuation is the major word of a line that extends the previous statement.
const Continuation = "continuation"

// Command is one parsed APT statement.
type Command struct {
	Major   string    `json:"major"`
	Minor   []string  `json:"minor,omitempty"`
	Numeric []float64 `json:"numeric,omitempty"`
	Strings []string  `json:"strings,omitempty"`
	Line    int       `json:"line"`
}

// IsContinuation reports whether c extends the previous statement.
func (c Command) IsContinuation() bool { return c.Major == Continuation }

// HasMinor reports whether any of words appears among the minor words.
func (c Command) HasMinor(words ...string) bool {
	for _, w := range words {
		if slices.Contains(c.Minor, w) {
			return true
		}
	}
	return false
}

// FirstMinor returns the first minor word, or "".
func (c Command) FirstMinor() string {
	if len(c.Minor) == 0 {
		return ""
	}
	return c.Minor[0]
}

// Number returns the i-th numeric value, or def when there is none.
func (c Command) Number(i int, def float64) float64 {
	if i < 0 || i >= len(c.Numeric) {
		return def
	}
	return c.Numeric[i]
}

// Text returns the i-th string value, or "".
func (c Command) Text(i int) string {
	if i < 0 || i >= len(c.Strings) {
		return ""
	}
	return c.Strings[i]
}

// String renders c back as APT text: upper-cased minor words first, then
// numbers, then quoted strings. Token order across the three kinds is not
// kept by Command, so the output is canonical rather than verbatim.
func (c Command) String() string {
	var params []string
	for _, m := range c.Minor {
		params = append(params, strings.ToUpper(m))
	}
	for _, n := range c.Numeric {
		params = append(params, strconv.FormatFloat(n, 'f', -1, 64))
	}
	for _, s := range c.Strings {
		params = append(params, "'"+s+"'")
	}

	if c.IsContinuation() {
		return strings.Join(params, ", ")
	}
	major := strings.ToUpper(c.Major)
	if len(params) == 0 {
		return major
	}
	return major + "/" + strings.Join(params, ", ")
}
