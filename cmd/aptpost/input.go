package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/clfile"
	"github.com/aptpost/aptpost/runtime/charset"
	"github.com/aptpost/aptpost/runtime/post"
)

// StreamExt marks binary command streams written by `aptpost dump --format cbor`.
const StreamExt = ".aptcl"

// getInputReader handles the 2 modes of input:
// 1. Explicit stdin with "-"
// 2. File input
func getInputReader(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening file %s: %w", path, err)
	}
	return f, f.Close, nil
}

// hasPipedInput detects if there's data piped to stdin
func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// pipes may not report a size, so only the mode is checked
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func isStream(path string) bool {
	return strings.EqualFold(filepath.Ext(path), StreamExt)
}

// source is an open command source.
type source struct {
	post.Source
	encoding string // "" for binary streams
	close    func() error
}

// openSource opens path as a command source. Binary streams are decoded as
// CBOR records; anything else is APT text in the named encoding.
func openSource(path, encoding string, stdin io.Reader, logger *slog.Logger) (*source, error) {
	r, closeFunc, err := getInputReader(path, stdin)
	if err != nil {
		return nil, err
	}

	if isStream(path) {
		rd, err := clfile.NewReader(r)
		if err != nil {
			_ = closeFunc()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &source{Source: rd, close: closeFunc}, nil
	}

	text, name, err := charset.NewReaderFor(r, encoding)
	if err != nil {
		_ = closeFunc()
		return nil, err
	}
	logger.Debug("input opened", "input", path, "encoding", name)
	return &source{
		Source:   apt.NewLexer(text, apt.WithLogger(logger)),
		encoding: name,
		close:    closeFunc,
	}, nil
}

// drain reads src to the end, calling fn for each command.
func drain(ctx context.Context, src post.Source, fn func(apt.Command) error) error {
	for {
		cmd, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(cmd); err != nil {
			return err
		}
	}
}
