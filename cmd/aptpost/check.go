package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aptpost/aptpost/runtime/post"
)

func newCheckCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check INPUT",
		Short: "Validate an APT/CL file without writing G-code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			logger := g.newLogger(cmd.ErrOrStderr(), false)
			src, err := openSource(input, g.encoding, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = src.close() }()

			report, err := post.Check(cmd.Context(), src, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", displayName(input), err)
			}

			useColor := colorFor(g, cmd.OutOrStdout())
			printReport(cmd.OutOrStdout(), displayName(input), report, useColor)
			if n := report.Errors(); n > 0 {
				return &CLIError{
					Type:    "check",
					Message: fmt.Sprintf("%s: %d %s", displayName(input), n, plural(n, "problem", "problems")),
				}
			}
			return nil
		},
	}
}

func printReport(w io.Writer, name string, report post.Report, useColor bool) {
	for _, issue := range report.Issues {
		level, color := "error", ColorRed
		if issue.Warning {
			level, color = "warning", ColorYellow
		}
		major := strings.ToUpper(issue.Major)
		if major == "" {
			major = "-"
		}
		_, _ = fmt.Fprintf(w, "%s:%d: %s %s %s\n",
			name, issue.Line, Colorize(level+":", color, useColor), Colorize(major, ColorCyan, useColor), issue.Message)
	}

	errs := report.Errors()
	warnings := len(report.Issues) - errs
	status := Colorize("ok", ColorGreen, useColor)
	if errs > 0 {
		status = Colorize("failed", ColorRed, useColor)
	}
	_, _ = fmt.Fprintf(w, "%s %s: %d commands, %d %s, %d %s\n", status, name,
		report.Commands, errs, plural(errs, "error", "errors"), warnings, plural(warnings, "warning", "warnings"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
