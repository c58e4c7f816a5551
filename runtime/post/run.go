package post

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/block"
)

// ErrCancelled is returned, wrapped together with the cause, when a run is
// interrupted before the end of its input.
var ErrCancelled = errors.New("post: processing cancelled")

// Source yields commands until io.EOF. *apt.Lexer and *clfile.Reader are
// sources.
type Source interface {
	Next(ctx context.Context) (apt.Command, error)
}

// Run writes the header, dispatches every command from src and writes the
// footer. When ctx is done it writes the cancel marker instead of the
// footer and returns an error matching ErrCancelled. The sink is flushed
// either way.
func Run(ctx context.Context, src Source, pc *Context) error {
	if err := writeTemplate(pc, pc.Config.Templates.Header); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return cancel(pc, err)
		}
		cmd, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, apt.ErrCancelled) {
			return cancel(pc, context.Cause(ctx))
		}
		if err != nil {
			return err
		}
		if err := pc.Dispatch(cmd); err != nil {
			return err
		}
	}

	if err := writeTemplate(pc, pc.Config.Templates.Footer); err != nil {
		return err
	}
	pc.logger.Info("program written",
		"commands", pc.Stats.Commands,
		"motions", pc.Stats.Motions,
		"tools", pc.Stats.ToolChanges,
		"blocks", pc.Writer.Blocks(),
		"unknown", pc.Stats.Unknown)
	return flush(pc)
}

func writeTemplate(pc *Context, lines []string) error {
	if !pc.Config.Templates.Enabled {
		return nil
	}
	for _, line := range pc.Config.Render(lines, pc.vars) {
		if err := pc.Writer.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

func cancel(pc *Context, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	pc.logger.Warn("processing cancelled", "commands", pc.Stats.Commands, "cause", cause)
	if marker := pc.Config.CancelMarker; marker != "" {
		if err := pc.Writer.WriteLine(marker); err != nil {
			return err
		}
	}
	if err := flush(pc); err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func flush(pc *Context) error {
	if f, ok := pc.Writer.Sink().(block.Flusher); ok {
		return f.Flush()
	}
	return nil
}
