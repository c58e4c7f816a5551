package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/clfile"
)

// Dump formats.
const (
	DumpText = "text"
	DumpJSON = "json"
	DumpCBOR = "cbor"
)

func newDumpCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "dump INPUT",
		Short: "Print the parsed command stream",
		Long: `Print the commands parsed from INPUT.

  text  one canonical APT statement per line, prefixed with the source line
  json  one JSON object per line
  cbor  a binary command stream (` + StreamExt + `) that translate reads back`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case DumpText, DumpJSON, DumpCBOR:
			default:
				return &CLIError{
					Type:    "usage",
					Message: fmt.Sprintf("unsupported format %q", format),
					Hint:    "Use text, json or cbor",
				}
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return &CLIError{Type: "output", Message: "cannot create " + output, Details: err.Error()}
				}
				defer func() { _ = f.Close() }()
				w = f
			} else if format == DumpCBOR && isTerminal(w) {
				return &CLIError{
					Type:    "usage",
					Message: "refusing to write a binary stream to the terminal",
					Hint:    "Redirect stdout or pass -o FILE" + StreamExt,
				}
			}

			logger := g.newLogger(cmd.ErrOrStderr(), false)
			src, err := openSource(args[0], g.encoding, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = src.close() }()

			if format == DumpCBOR {
				digest, n, err := clfile.Encode(cmd.Context(), w, src)
				if err != nil {
					return err
				}
				logger.Info("stream written", "commands", n, "blake2b-256", fmt.Sprintf("%x", digest))
				return nil
			}
			return dumpCommands(cmd, w, src, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", DumpText, "Output format: text, json or cbor")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func dumpCommands(cmd *cobra.Command, w io.Writer, src *source, format string) error {
	enc := json.NewEncoder(w)
	return drain(cmd.Context(), src, func(c apt.Command) error {
		if format == DumpJSON {
			return enc.Encode(c)
		}
		_, err := fmt.Fprintf(w, "%5d  %s\n", c.Line, c.String())
		return err
	})
}
