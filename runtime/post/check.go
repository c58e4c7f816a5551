package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aptpost/aptpost/core/apt"
)

// Issue is one finding of Check.
type Issue struct {
	Line    int
	Major   string
	Message string
	Warning bool // the program can still be translated
}

func (i Issue) String() string {
	level := "error"
	if i.Warning {
		level = "warning"
	}
	return fmt.Sprintf("line %d: %s: %s: %s", i.Line, level, strings.ToUpper(i.Major), i.Message)
}

// Report is the result of Check.
type Report struct {
	Commands int
	Issues   []Issue
}

// Errors returns the number of issues that are not warnings.
func (r Report) Errors() int {
	n := 0
	for _, i := range r.Issues {
		if !i.Warning {
			n++
		}
	}
	return n
}

// Check reads src without producing output and reports motion statements
// missing coordinates, unknown major words and the first parse error. A nil
// registry means DefaultRegistry.
func Check(ctx context.Context, src Source, reg *Registry) (Report, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	var report Report
	for {
		cmd, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		var perr *apt.ParseError
		if errors.As(err, &perr) {
			report.Issues = append(report.Issues, Issue{Line: perr.Line, Message: perr.Message})
			return report, nil
		}
		if err != nil {
			return report, err
		}

		report.Commands++
		if issue, ok := checkCommand(cmd, reg); ok {
			report.Issues = append(report.Issues, issue)
		}
	}
}

func checkCommand(cmd apt.Command, reg *Registry) (Issue, bool) {
	issue := Issue{Line: cmd.Line, Major: cmd.Major}
	switch cmd.Major {
	case "goto":
		if len(cmd.Numeric) < 2 {
			issue.Message = fmt.Sprintf("needs at least 2 coordinates, got %d", len(cmd.Numeric))
			return issue, true
		}
	case "rapid":
		// a bare RAPID only switches the next motion to rapid
		if len(cmd.Numeric) == 1 {
			issue.Message = "needs at least 2 coordinates, got 1"
			return issue, true
		}
	default:
		if _, ok := reg.Lookup(cmd.Major); ok {
			return Issue{}, false
		}
		if verb, _, found := strings.Cut(cmd.Major, " "); found {
			if _, ok := reg.Lookup(verb); ok {
				return Issue{}, false
			}
		}
		issue.Warning = true
		issue.Message = "unknown command"
		if s := reg.Suggest(cmd.Major); s != "" {
			issue.Message += fmt.Sprintf(" (did you mean %q?)", strings.ToUpper(s))
		}
		return issue, true
	}
	return Issue{}, false
}
