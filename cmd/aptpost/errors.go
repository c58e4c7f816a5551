package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/runtime/post"
)

// CLIError represents a formatted CLI error with context
type CLIError struct {
	Type    string // "usage", "check", "output"
	Message string
	Details string // Additional context
	Hint    string // How to fix it
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString("\n")
		b.WriteString(e.Details)
	}
	if e.Hint != "" {
		b.WriteString("\n")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// FormatError formats an error for CLI output with colors
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}

	var (
		cliErr     *CLIError
		parseErr   *apt.ParseError
		configErr  *config.Error
		unknownErr *post.UnknownCommandError
	)
	switch {
	case errors.As(err, &cliErr):
		formatCLIError(w, cliErr, useColor)
	case errors.As(err, &parseErr):
		formatCLIError(w, &CLIError{
			Type:    "parse",
			Message: parseErr.Message,
			Details: snippet(parseErr),
		}, useColor)
	case errors.As(err, &configErr):
		formatConfigError(w, configErr, useColor)
	case errors.As(err, &unknownErr):
		formatCLIError(w, &CLIError{
			Type:    "translate",
			Message: err.Error(),
			Hint:    "Run without --strict to skip unknown commands, or `aptpost check` to list them",
		}, useColor)
	case errors.Is(err, config.ErrUnknownProfile):
		formatCLIError(w, &CLIError{
			Type:    "usage",
			Message: err.Error(),
			Hint:    "`aptpost controllers` lists the built-in profiles; --config loads one from a file",
		}, useColor)
	case errors.Is(err, post.ErrCancelled):
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Cancelled: ", ColorYellow, useColor), err.Error())
	default:
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
	}
}

// snippet returns the source lines of a parse error without its headline.
func snippet(err *apt.ParseError) string {
	_, rest, _ := strings.Cut(err.Error(), "\n")
	return rest
}

// formatCLIError formats CLI errors
func formatCLIError(w io.Writer, err *CLIError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message)

	if err.Details != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", err.Details)
	}

	if err.Hint != "" {
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), err.Hint)
	}
}

func formatConfigError(w io.Writer, err *config.Error, useColor bool) {
	msg := "controller profile " + err.Source
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), msg)
	for _, p := range err.Problems {
		path := p.Path
		if path == "" {
			path = "/"
		}
		_, _ = fmt.Fprintf(w, "  %s %s\n", Colorize(path+":", ColorCyan, useColor), p.Message)
	}
	if errors.Is(err, config.ErrInvalid) {
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor),
			"Start from a built-in profile; `aptpost controllers` lists them")
	}
}
