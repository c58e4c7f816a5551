package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aptpost/aptpost/core/block"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/runtime/post"
)

// OutputExt is appended to the input name when several files are translated.
const OutputExt = ".nc"

type translateOptions struct {
	output  string
	strict  bool
	verbose bool
}

// job is one input and where its program goes. An empty output means the
// command's standard output.
type job struct {
	input  string
	output string
}

// translateEnv is what every job shares.
type translateEnv struct {
	stdin    io.Reader
	stdout   io.Writer
	logger   *slog.Logger
	encoding string
	strict   bool
}

type translateResult struct {
	job      job
	done     bool
	encoding string
	stats    post.Stats
	blocks   int
	lines    int
	bytes    int64
	digest   [32]byte
}

func newTranslateCmd(g *globalOptions) *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate [INPUT...]",
		Short: "Translate APT/CL files into G-code",
		Long: `Translate APT/CL files into G-code for the selected controller.

INPUT may be "-" for stdin; with no INPUT piped stdin is read. Files ending in
` + StreamExt + ` are binary command streams written by "aptpost dump --format cbor".
With several inputs each program is written next to its input, or into the
directory given by --output, with the extension ` + OutputExt + `. Inputs are
translated concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, g, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file, or directory with several inputs (default stdout)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on unknown commands instead of skipping them")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print statistics and the output digest")
	return cmd
}

func runTranslate(cmd *cobra.Command, g *globalOptions, opts translateOptions, args []string) error {
	if len(args) == 0 {
		if !hasPipedInput() {
			return &CLIError{
				Type:    "usage",
				Message: "no input files",
				Hint:    `Pass an APT file, or "-" to read stdin`,
			}
		}
		args = []string{"-"}
	}

	cfg, err := g.resolve()
	if err != nil {
		return err
	}
	jobs, err := planJobs(args, opts.output)
	if err != nil {
		return err
	}

	env := translateEnv{
		stdin:    cmd.InOrStdin(),
		stdout:   cmd.OutOrStdout(),
		logger:   g.newLogger(cmd.ErrOrStderr(), opts.verbose),
		encoding: g.encoding,
		strict:   opts.strict,
	}

	results := make([]translateResult, len(jobs))
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		eg.Go(func() error {
			res, err := translateFile(ctx, cfg.Clone(), j, env)
			results[i] = res
			return err
		})
	}
	err = eg.Wait()

	if opts.verbose {
		printSummaries(cmd.ErrOrStderr(), results, colorFor(g, cmd.ErrOrStderr()))
	}
	return err
}

// planJobs pairs each input with its output file.
func planJobs(inputs []string, output string) ([]job, error) {
	if len(inputs) == 1 {
		if output == "-" {
			output = ""
		}
		return []job{{input: inputs[0], output: output}}, nil
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return nil, &CLIError{
				Type:    "usage",
				Message: fmt.Sprintf("--output must be a directory when translating %d files", len(inputs)),
				Details: err.Error(),
			}
		}
	}

	jobs := make([]job, 0, len(inputs))
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		if in == "-" {
			return nil, &CLIError{
				Type:    "usage",
				Message: "stdin can only be translated on its own",
			}
		}
		dir := output
		if dir == "" {
			dir = filepath.Dir(in)
		}
		out := filepath.Join(dir, stem(in)+OutputExt)
		if prev, ok := seen[out]; ok {
			return nil, &CLIError{
				Type:    "usage",
				Message: fmt.Sprintf("%s and %s would both be written to %s", prev, in, out),
			}
		}
		seen[out] = in
		jobs = append(jobs, job{input: in, output: out})
	}
	return jobs, nil
}

// translateFile runs one post-processing pipeline.
func translateFile(ctx context.Context, cfg *config.Controller, j job, env translateEnv) (translateResult, error) {
	res := translateResult{job: j}

	src, err := openSource(j.input, env.encoding, env.stdin, env.logger)
	if err != nil {
		return res, err
	}
	defer func() { _ = src.close() }()
	res.encoding = src.encoding

	w := env.stdout
	var f *os.File
	if j.output != "" {
		if f, err = os.Create(j.output); err != nil {
			return res, &CLIError{
				Type:    "output",
				Message: "cannot create " + j.output,
				Details: err.Error(),
			}
		}
		w = f
	}

	sink := block.NewLineSink(w, cfg.SinkOptions()...)
	pc := post.NewContext(cfg, sink,
		post.WithLogger(env.logger.With("input", displayName(j.input))),
		post.WithStrict(env.strict),
		post.WithTemplateVars(config.TemplateVars{
			Name:      programName(j.input),
			InputFile: displayName(j.input),
			Time:      now(),
		}),
	)

	runErr := post.Run(ctx, src, pc)
	if err := sink.Flush(); runErr == nil {
		runErr = err
	}
	if f != nil {
		if err := f.Close(); runErr == nil {
			runErr = err
		}
	}

	res.stats = pc.Stats
	res.blocks = pc.Writer.Blocks()
	res.lines = sink.Lines()
	res.bytes = sink.Bytes()
	res.digest = sink.Sum()
	if runErr != nil {
		return res, fmt.Errorf("%s: %w", displayName(j.input), runErr)
	}
	res.done = true
	return res, nil
}

func printSummaries(w io.Writer, results []translateResult, useColor bool) {
	for _, r := range results {
		if !r.done {
			continue
		}
		out := r.job.output
		if out == "" {
			out = "stdout"
		}
		_, _ = fmt.Fprintf(w, "%s %s -> %s\n", Colorize("ok", ColorGreen, useColor), displayName(r.job.input), out)
		_, _ = fmt.Fprintf(w, "   %d commands, %d motions, %d tool changes, %d cycles, %d unknown\n",
			r.stats.Commands, r.stats.Motions, r.stats.ToolChanges, r.stats.Cycles, r.stats.Unknown)
		enc := r.encoding
		if enc == "" {
			enc = "binary stream"
		}
		_, _ = fmt.Fprintf(w, "   %d blocks, %d lines, %d bytes, input %s\n", r.blocks, r.lines, r.bytes, enc)
		_, _ = fmt.Fprintf(w, "   %s %x\n", Colorize("blake2b-256", ColorGray, useColor), r.digest)
	}
}

func colorFor(g *globalOptions, w io.Writer) bool {
	f, _ := w.(*os.File)
	return ShouldUseColor(g.noColor, f)
}

// stem is the file name of path without directory and extension.
func stem(path string) string {
	if path == "-" {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

// programName fills {name} in headers.
func programName(path string) string {
	return strings.ToUpper(stem(path))
}
