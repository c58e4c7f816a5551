package ncword

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/aptpost/aptpost/core/invariant"
)

// SignMode controls how the sign of a value is rendered.
type SignMode int

const (
	SignNone      SignMode = iota // never render a sign
	SignMinusOnly                 // render "-" for negative values
	SignPlusMinus                 // render "+" or "-" always
)

// PointMode controls when the decimal point is rendered.
type PointMode int

const (
	PointNever    PointMode = iota // no point; digits after it are implied, "X1500" for 1.5 with three
	PointOptional                  // point only when the value has a fractional part
	PointAlways                    // point always, "X100." style
)

// TrailingZeros controls how zeros at the end of the fractional part are trimmed.
type TrailingZeros int

const (
	TrailingStrip   TrailingZeros = iota // strip all trailing zeros
	TrailingKeepOne                      // keep at least one digit after the point
	TrailingKeepAll                      // keep every rendered digit
)

// FormatSpec describes how a numeric word is rendered, parsed from the
// compact grammar ADDR{SIGN DIGITS POINT DIGITS}, for example "X{-0000!0##}".
//
// Grammar inside the braces:
//   - sign: "-" minus-only, "+" plus-and-minus, absent none
//   - a run of '0'/'#' gives the digits before the point; any '0' enables leading zero padding
//   - point: "!" always, "." optional, "^" never with implied decimals, absent never
//   - a run of '0'/'#' gives the digits after the point; the number of '0' characters
//     selects the trailing policy (none: strip, all: keep all, some: keep one).
//     Without a point mark there are no digits after it.
type FormatSpec struct {
	Address      string
	Sign         SignMode
	Point        PointMode
	DigitsBefore int
	DigitsAfter  int
	LeadingZeros bool
	Trailing     TrailingZeros
}

// DefaultFormatSpec returns the fallback format used for malformed
// specs and unconfigured coordinate addresses.
func DefaultFormatSpec(address string) FormatSpec {
	return FormatSpec{
		Address:      address,
		Sign:         SignMinusOnly,
		Point:        PointAlways,
		DigitsBefore: 4,
		DigitsAfter:  3,
		LeadingZeros: true,
		Trailing:     TrailingKeepOne,
	}
}

// ParseFormatSpec parses s best-effort. Malformed input yields the default
// spec, keeping any leading address letters.
func ParseFormatSpec(s string) FormatSpec {
	if spec, ok := TryParseFormatSpec(s); ok {
		return spec
	}
	return DefaultFormatSpec(leadingAddress(s))
}

// MustParseFormatSpec is like TryParseFormatSpec but panics on malformed
// input. It is meant for package-level tables of known-good specs.
func MustParseFormatSpec(s string) FormatSpec {
	spec, ok := TryParseFormatSpec(s)
	invariant.Precondition(ok, "format spec %q must be well formed", s)
	return spec
}

// TryParseFormatSpec parses s strictly and reports whether it was well formed.
func TryParseFormatSpec(s string) (FormatSpec, bool) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '{')
	if open < 0 || !strings.HasSuffix(s, "}") {
		return FormatSpec{}, false
	}
	address := s[:open]
	for _, r := range address {
		if !unicode.IsLetter(r) {
			return FormatSpec{}, false
		}
	}

	spec := FormatSpec{Address: address, Point: PointNever}
	body := s[open+1 : len(s)-1]
	i := 0
	implied := false

	if i < len(body) {
		switch body[i] {
		case '-':
			spec.Sign = SignMinusOnly
			i++
		case '+':
			spec.Sign = SignPlusMinus
			i++
		}
	}

	for i < len(body) && isDigitMark(body[i]) {
		if body[i] == '0' {
			spec.LeadingZeros = true
		}
		spec.DigitsBefore++
		i++
	}

	if i < len(body) {
		switch body[i] {
		case '!':
			spec.Point = PointAlways
			i++
		case '.':
			spec.Point = PointOptional
			i++
		case '^':
			spec.Point = PointNever
			i++
			implied = true
		}
	}

	zeros := 0
	for i < len(body) && isDigitMark(body[i]) {
		if body[i] == '0' {
			zeros++
		}
		spec.DigitsAfter++
		i++
	}

	if i != len(body) || spec.DigitsBefore+spec.DigitsAfter == 0 || (implied && spec.DigitsAfter == 0) {
		return FormatSpec{}, false
	}

	switch {
	case spec.DigitsAfter == 0:
		spec.Trailing = TrailingKeepOne
	case zeros == 0:
		spec.Trailing = TrailingStrip
	case zeros == spec.DigitsAfter:
		spec.Trailing = TrailingKeepAll
	default:
		spec.Trailing = TrailingKeepOne
	}
	return spec, true
}

func isDigitMark(c byte) bool {
	return c == '0' || c == '#'
}

func leadingAddress(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// String renders the spec back into its grammar.
func (f FormatSpec) String() string {
	var b strings.Builder
	b.WriteString(f.Address)
	b.WriteByte('{')
	switch f.Sign {
	case SignMinusOnly:
		b.WriteByte('-')
	case SignPlusMinus:
		b.WriteByte('+')
	}
	mark := "#"
	if f.LeadingZeros {
		mark = "0"
	}
	b.WriteString(strings.Repeat(mark, f.DigitsBefore))
	switch f.Point {
	case PointAlways:
		b.WriteByte('!')
	case PointOptional:
		b.WriteByte('.')
	case PointNever:
		if f.DigitsAfter > 0 {
			b.WriteByte('^')
		}
	}
	if f.DigitsAfter > 0 {
		switch f.Trailing {
		case TrailingStrip:
			b.WriteString(strings.Repeat("#", f.DigitsAfter))
		case TrailingKeepAll:
			b.WriteString(strings.Repeat("0", f.DigitsAfter))
		default:
			b.WriteString("0" + strings.Repeat("#", f.DigitsAfter-1))
		}
	}
	b.WriteByte('}')
	return b.String()
}

// WithAddress returns a copy of f rendering under a different address.
func (f FormatSpec) WithAddress(address string) FormatSpec {
	f.Address = address
	return f
}

// Format renders v, prefixed with the address. With PointNever the digits
// after the point are implied: v is rounded to DigitsAfter places and written
// without the point, and the trailing policy does not apply.
func (f FormatSpec) Format(v float64) string {
	invariant.Finite(v, "value")
	after := max(f.DigitsAfter, 0)

	digits := strconv.FormatFloat(math.Abs(v), 'f', after, 64)
	intPart, frac, _ := strings.Cut(digits, ".")
	negative := v < 0 && strings.Trim(intPart+frac, "0") != ""

	width := f.DigitsBefore
	if f.Point == PointNever {
		intPart = strings.TrimLeft(intPart+frac, "0")
		if intPart == "" {
			intPart = "0"
		}
		width += after
	}
	if f.LeadingZeros && len(intPart) < width {
		intPart = strings.Repeat("0", width-len(intPart)) + intPart
	}

	body := intPart
	if f.Point != PointNever {
		frac = f.trimFraction(frac)
		if f.Point == PointOptional && strings.Trim(frac, "0") == "" {
			frac = ""
		}
		if frac != "" || f.Point == PointAlways {
			body += "." + frac
		}
	}

	switch {
	case negative && f.Sign != SignNone:
		body = "-" + body
	case !negative && f.Sign == SignPlusMinus:
		body = "+" + body
	}
	return f.Address + body
}

func (f FormatSpec) trimFraction(frac string) string {
	switch f.Trailing {
	case TrailingStrip:
		return strings.TrimRight(frac, "0")
	case TrailingKeepOne:
		trimmed := strings.TrimRight(frac, "0")
		if trimmed == "" && frac != "" {
			return "0"
		}
		return trimmed
	default:
		return frac
	}
}

// ParseValue reads a token produced by Format back into a number. The
// address prefix is optional and matched case-insensitively.
func (f FormatSpec) ParseValue(token string) (float64, error) {
	s := strings.TrimSpace(token)
	if f.Address != "" && len(s) >= len(f.Address) && strings.EqualFold(s[:len(f.Address)], f.Address) {
		s = s[len(f.Address):]
	}
	if s == "" {
		return 0, fmt.Errorf("token %q has no value for address %q", token, f.Address)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("token %q: %w", token, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("token %q: value is not finite", token)
	}
	if f.Point == PointNever && f.DigitsAfter > 0 && !strings.Contains(s, ".") {
		v /= math.Pow10(f.DigitsAfter)
	}
	return v, nil
}
