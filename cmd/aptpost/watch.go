package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// settle is how long a file must stay quiet before it is translated again.
const settle = 100 * time.Millisecond

func newWatchCmd(g *globalOptions) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "watch INPUT -o OUTPUT",
		Short: "Translate INPUT again whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" || opts.output == "-" {
				return &CLIError{
					Type:    "usage",
					Message: "watch needs an output file",
					Hint:    "Pass -o FILE" + OutputExt,
				}
			}
			if args[0] == "-" {
				return &CLIError{Type: "usage", Message: "cannot watch stdin"}
			}
			return runWatch(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on unknown commands instead of skipping them")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print statistics after each translation")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globalOptions, opts translateOptions, input string) error {
	cfg, err := g.resolve()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	useColor := colorFor(g, stderr)
	env := translateEnv{
		stdin:    cmd.InOrStdin(),
		stdout:   cmd.OutOrStdout(),
		logger:   g.newLogger(stderr, opts.verbose),
		encoding: g.encoding,
		strict:   opts.strict,
	}
	j := job{input: input, output: opts.output}

	translate := func() {
		res, err := translateFile(ctx, cfg.Clone(), j, env)
		if err != nil {
			FormatError(stderr, err, useColor)
			return
		}
		if opts.verbose {
			printSummaries(stderr, []translateResult{res}, useColor)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace the file rather than write it, so the directory
	// is watched instead of the file.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", input, err)
	}

	translate()
	env.logger.Info("watching", "input", input, "output", opts.output)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			env.logger.Warn("watch error", "error", err)
		case <-timer.C:
			translate()
		}
	}
}
