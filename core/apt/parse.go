package apt

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

func isSpace(r rune) bool { return unicode.IsSpace(r) }

// quoteState tracks single and double quote spans. A quote character only
// toggles its own kind while the other kind is closed.
type quoteState struct {
	single, double bool
}

func (q *quoteState) step(c byte) {
	switch {
	case c == '\'' && !q.double:
		q.single = !q.single
	case c == '"' && !q.single:
		q.double = !q.double
	}
}

func (q quoteState) open() bool { return q.single || q.double }

// insideQuotes reports whether position pos of s lies inside a quote span.
func insideQuotes(s string, pos int) bool {
	var q quoteState
	for i := 0; i < pos; i++ {
		q.step(s[i])
	}
	return q.open()
}

// commentStart returns the index of the first "$$" outside quotes, or -1.
func commentStart(s string) int {
	var q quoteState
	for i := 0; i < len(s); i++ {
		if !q.open() && s[i] == '$' && i+1 < len(s) && s[i+1] == '$' {
			return i
		}
		q.step(s[i])
	}
	return -1
}

// splitTopLevel splits s on sep where sep is outside quotes and parentheses.
// With limit 2 it stops after the first split.
func splitTopLevel(s string, sep byte, limit int) []string {
	var (
		parts []string
		q     quoteState
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		q.step(c)
		if q.open() || c == '\'' || c == '"' {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
				if limit > 0 && len(parts) == limit-1 {
					return append(parts, s[start:])
				}
			}
		}
	}
	return append(parts, s[start:])
}

// parseStatement parses one joined, right-trimmed statement ending on line.
func parseStatement(text string, line int) (Command, error) {
	first, _ := utf8.DecodeRuneInString(text)
	if !unicode.IsLetter(first) {
		return parseParameters(text, line, Continuation), nil
	}

	major, params := text, ""
	if parts := splitTopLevel(text, '/', 2); len(parts) == 2 {
		major, params = parts[0], parts[1]
	}
	return newStatement(major, params, text, line)
}

// newStatement normalizes the major word and parses params. text is the
// whole statement, used in errors.
func newStatement(major, params, text string, line int) (Command, error) {
	major = strings.TrimRight(strings.TrimSpace(major), ",")
	major = strings.ToLower(strings.TrimSpace(major))
	if major == "" {
		return Command{}, &ParseError{Line: line, Fragment: text, Message: "empty major word"}
	}
	return parseParameters(params, line, major), nil
}

// parseParameters classifies the comma separated tokens of params.
func parseParameters(params string, line int, major string) Command {
	cmd := Command{Major: major, Line: line}
	if strings.TrimSpace(params) == "" {
		return cmd
	}

	for _, tok := range splitTopLevel(params, ',', 0) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		switch {
		case isQuoted(tok):
			cmd.Strings = append(cmd.Strings, tok[1:len(tok)-1])
		case len(tok) > 2 && tok[0] == '(' && tok[len(tok)-1] == ')':
			cmd.Strings = append(cmd.Strings, strings.TrimSpace(tok[1:len(tok)-1]))
		default:
			if v, ok := parseNumber(tok); ok {
				cmd.Numeric = append(cmd.Numeric, v)
			} else {
				cmd.Minor = append(cmd.Minor, strings.ToLower(tok))
			}
		}
	}
	return cmd
}

func isQuoted(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	first, last := tok[0], tok[len(tok)-1]
	return (first == '\'' || first == '"') && first == last
}

// parseNumber decodes a plain decimal number, accepting ',' as the decimal
// separator. Hex, infinities and NaN are not numbers in APT.
func parseNumber(tok string) (float64, bool) {
	tok = strings.ReplaceAll(tok, ",", ".")
	hasDigit := false
	for i := 0; i < len(tok); i++ {
		switch c := tok[i]; {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E':
		default:
			return 0, false
		}
	}
	if !hasDigit {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
