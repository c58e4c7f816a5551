package apt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/aptpost/aptpost/core/invariant"
)

// Lexer turns a forward-only APT stream into Commands. It reads one physical
// line at a time and never buffers more than the statement being joined.
// A Lexer is single-pass and not safe for concurrent use.
type Lexer struct {
	r         *bufio.Reader
	config    LexerConfig
	line      int // number of the last physical line read
	pending   strings.Builder
	done      bool
	telemetry *LexerTelemetry
}

// NewLexer returns a lexer reading from r.
func NewLexer(r io.Reader, opts ...LexerOpt) *Lexer {
	invariant.NotNil(r, "reader")
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	l := &Lexer{
		r:      bufio.NewReader(r),
		config: config,
		line:   config.lineStart - 1,
	}
	if config.telemetry > TelemetryOff {
		l.telemetry = &LexerTelemetry{}
	}
	return l
}

// Telemetry returns the counters collected so far, or nil when telemetry is off.
func (l *Lexer) Telemetry() *LexerTelemetry {
	return l.telemetry
}

// Line returns the number of the last physical line read.
func (l *Lexer) Line() int { return l.line }

// Next returns the next command. It returns io.EOF once the stream is
// exhausted, a *ParseError for a malformed statement, and an error matching
// both ErrCancelled and ctx.Err() when ctx is done before a line is read.
func (l *Lexer) Next(ctx context.Context) (Command, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Command{}, cancelled(err)
		}
		if l.done {
			return Command{}, io.EOF
		}

		raw, ok, err := l.readLine()
		if err != nil {
			return Command{}, err
		}
		if !ok {
			l.done = true
			rest := strings.TrimSpace(l.pending.String())
			l.pending.Reset()
			if rest == "" {
				return Command{}, io.EOF
			}
			l.config.logger.Debug("flushing dangling continuation", "line", l.line)
			return l.emit(parseParameters(rest, l.line, Continuation)), nil
		}

		cmd, ok, err := l.processLine(raw)
		if err != nil {
			return Command{}, err
		}
		if ok {
			return l.emit(cmd), nil
		}
	}
}

// All returns the remaining commands as a single-use sequence. Iteration
// stops after the first error, which is yielded with a zero Command; io.EOF
// is not yielded.
func (l *Lexer) All(ctx context.Context) iter.Seq2[Command, error] {
	return func(yield func(Command, error) bool) {
		for {
			cmd, err := l.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Command{}, err)
				return
			}
			if !yield(cmd, nil) {
				return
			}
		}
	}
}

// readLine reads one physical line without its terminator. ok is false at
// end of stream.
func (l *Lexer) readLine() (string, bool, error) {
	raw, err := l.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("read line %d: %w", l.line+1, err)
	}
	if raw == "" && err != nil {
		return "", false, nil
	}

	l.line++
	if l.telemetry != nil {
		l.telemetry.PhysicalLines++
	}
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")
	if l.line == l.config.lineStart {
		raw = strings.TrimPrefix(raw, "\uFEFF")
	}
	return raw, true, nil
}

// processLine applies comment stripping, continuation joining and
// classification to one physical line. ok is false when the line produced
// no command.
func (l *Lexer) processLine(raw string) (Command, bool, error) {
	if strings.TrimSpace(raw) == "" {
		l.countBlank()
		return Command{}, false, nil
	}

	if i := commentStart(raw); i >= 0 {
		raw = raw[:i]
		if l.telemetry != nil {
			l.telemetry.CommentsStripped++
		}
		if strings.TrimSpace(raw) == "" {
			l.countBlank()
			return Command{}, false, nil
		}
	}

	trimmed := strings.TrimRightFunc(raw, isSpace)
	if last := len(trimmed) - 1; trimmed[last] == '$' && !insideQuotes(trimmed, last) {
		body := strings.TrimRightFunc(trimmed[:last], isSpace)
		l.pending.WriteString(body)
		l.pending.WriteByte(' ')
		if l.telemetry != nil {
			l.telemetry.JoinedLines++
		}
		return Command{}, false, nil
	}

	// Indentation is significant: a line starting with anything but a
	// letter continues the previous statement.
	text := trimmed
	if l.pending.Len() > 0 {
		text = l.pending.String() + strings.TrimLeftFunc(trimmed, isSpace)
		l.pending.Reset()
	}

	l.config.logger.Debug("statement", "line", l.line, "text", text)
	cmd, err := parseStatement(text, l.line)
	if err != nil {
		return Command{}, false, err
	}
	return cmd, true, nil
}

func (l *Lexer) countBlank() {
	if l.telemetry != nil {
		l.telemetry.BlankLines++
	}
}

func (l *Lexer) emit(cmd Command) Command {
	if l.telemetry != nil {
		l.telemetry.Commands++
		if cmd.IsContinuation() {
			l.telemetry.Continuations++
		}
	}
	l.config.logger.Debug("command", slog.String("major", cmd.Major), slog.Int("line", cmd.Line))
	return cmd
}

// ParseString parses a complete APT program held in memory.
func ParseString(src string, opts ...LexerOpt) ([]Command, error) {
	l := NewLexer(strings.NewReader(src), opts...)
	var cmds []Command
	for cmd, err := range l.All(context.Background()) {
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
