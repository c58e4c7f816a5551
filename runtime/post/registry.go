package post

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/invariant"
)

// Handler processes one command.
type Handler func(pc *Context, cmd apt.Command) error

// Registry maps major words to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds major to h, replacing any previous handler. Major words
// are matched case-insensitively.
func (r *Registry) Register(major string, h Handler) {
	major = strings.ToLower(strings.TrimSpace(major))
	invariant.Precondition(major != "", "major word must not be empty")
	invariant.NotNil(h, "handler")
	r.handlers[major] = h
}

// Lookup returns the handler bound to major.
func (r *Registry) Lookup(major string) (Handler, bool) {
	h, ok := r.handlers[strings.ToLower(major)]
	return h, ok
}

// Names returns the registered major words in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Suggest returns the registered major word closest to major, or "".
func (r *Registry) Suggest(major string) string {
	return findClosestMatch(major, r.Names())
}

// findClosestMatch finds the closest string match using fuzzy matching,
// falling back to edit distance when no candidate contains target.
func findClosestMatch(target string, candidates []string) string {
	if len(candidates) == 0 || target == "" {
		return ""
	}

	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", len(target)/2+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// UnknownCommandError reports a major word no handler is registered for.
type UnknownCommandError struct {
	Major      string
	Line       int
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	msg := fmt.Sprintf("line %d: unknown command %q", e.Line, strings.ToUpper(e.Major))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", strings.ToUpper(e.Suggestion))
	}
	return msg
}

// Dispatch runs the handler for cmd. A statement written without a slash,
// such as "PARTNO BRACKET", falls back to its first word with the rest of
// the text as a string argument.
func (pc *Context) Dispatch(cmd apt.Command) error {
	pc.Stats.Commands++

	h, ok := pc.registry.Lookup(cmd.Major)
	if !ok {
		if verb, rest, found := strings.Cut(cmd.Major, " "); found {
			if h, ok = pc.registry.Lookup(verb); ok {
				cmd.Major = verb
				cmd.Strings = append([]string{strings.ToUpper(strings.TrimSpace(rest))}, cmd.Strings...)
			}
		}
	}
	if !ok {
		return pc.unknown(cmd)
	}

	if err := h(pc, cmd); err != nil {
		return fmt.Errorf("line %d: %s: %w", cmd.Line, strings.ToUpper(cmd.Major), err)
	}
	if !cmd.IsContinuation() {
		pc.last = cmd
	}
	return nil
}

func (pc *Context) unknown(cmd apt.Command) error {
	pc.Stats.Unknown++
	err := &UnknownCommandError{
		Major:      cmd.Major,
		Line:       cmd.Line,
		Suggestion: pc.registry.Suggest(cmd.Major),
	}
	if pc.strict {
		return err
	}
	pc.logger.Warn("unknown command skipped", "line", cmd.Line, "major", cmd.Major, "suggestion", err.Suggestion)
	return nil
}
