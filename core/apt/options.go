package apt

import (
	"io"
	"log/slog"
)

// LexerOpt configures a Lexer.
type LexerOpt func(*LexerConfig)

// TelemetryMode controls counter collection.
type TelemetryMode int

const (
	TelemetryOff   TelemetryMode = iota // no counters (default)
	TelemetryBasic                      // line and command counters
)

// LexerConfig holds lexer configuration.
type LexerConfig struct {
	lineStart int
	logger    *slog.Logger
	telemetry TelemetryMode
}

func defaultConfig() LexerConfig {
	return LexerConfig{
		lineStart: 1,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLineStart sets the number reported for the first physical line.
func WithLineStart(n int) LexerOpt {
	return func(c *LexerConfig) {
		c.lineStart = n
	}
}

// WithLogger sends debug tracing to logger.
func WithLogger(logger *slog.Logger) LexerOpt {
	return func(c *LexerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetryBasic enables line and command counters.
func WithTelemetryBasic() LexerOpt {
	return func(c *LexerConfig) {
		c.telemetry = TelemetryBasic
	}
}

// LexerTelemetry counts what the lexer saw.
type LexerTelemetry struct {
	PhysicalLines    int // lines read from the source
	BlankLines       int // lines skipped as blank, including comment-only lines
	CommentsStripped int // "$$" comments removed
	JoinedLines      int // lines ending in a "$" continuation
	Commands         int // commands returned
	Continuations    int // commands returned with the continuation major word
}
