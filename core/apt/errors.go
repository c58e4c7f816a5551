package apt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned, wrapped together with the context error, when
// the context passed to Next is done.
var ErrCancelled = errors.New("apt: parsing cancelled")

// ParseError reports a statement that could not be parsed.
type ParseError struct {
	Line     int    // physical line where the statement ends
	Fragment string // statement text after continuation joining
	Message  string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse error: %s\n", e.Message)
	fmt.Fprintf(&b, "  --> line %d\n", e.Line)
	b.WriteString("   |\n")
	fmt.Fprintf(&b, "%3d | %s", e.Line, e.Fragment)
	return b.String()
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
