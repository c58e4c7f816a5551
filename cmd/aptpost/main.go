package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/runtime/charset"
)

// now stamps {dateTime} in program headers.
var now = time.Now

type globalOptions struct {
	controller string
	configPath string
	encoding   string
	debug      bool
	noColor    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := &globalOptions{}
	err := newRootCmd(opts).ExecuteContext(ctx)
	stop()
	if err != nil {
		FormatError(os.Stderr, err, ShouldUseColor(opts.noColor, os.Stderr))
		os.Exit(1)
	}
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aptpost [command]",
		Short:         "Translate APT/CL toolpaths into G-code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.controller, "controller", "c", "fanuc", "Built-in controller profile")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Controller profile file (.json, .yaml), overrides --controller")
	rootCmd.PersistentFlags().StringVar(&opts.encoding, "encoding", charset.Auto, "Input encoding, e.g. utf-8 or windows-1251")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newTranslateCmd(opts),
		newCheckCmd(opts),
		newDumpCmd(opts),
		newWatchCmd(opts),
		newControllersCmd(),
	)
	return rootCmd
}

// resolve returns the profile selected by --controller and --config.
func (o *globalOptions) resolve() (*config.Controller, error) {
	return config.Resolve(o.controller, o.configPath)
}

// newLogger logs to w: warnings by default, milestones with verbose, and
// everything with --debug or APTPOST_DEBUG set.
func (o *globalOptions) newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	if o.debug || os.Getenv("APTPOST_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove timestamp for cleaner output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
