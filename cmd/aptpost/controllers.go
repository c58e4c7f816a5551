package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aptpost/aptpost/core/config"
)

func newControllersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "controllers",
		Short: "List the built-in controller profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tMACHINE\tVERSION\tCYCLES")
			for _, name := range config.Names() {
				c, err := config.Builtin(name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Machine, c.Version, c.CycleStyle)
			}
			return tw.Flush()
		},
	}
}
