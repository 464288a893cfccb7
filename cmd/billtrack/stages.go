package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/billtrack/billtrack/internal/bills"
)

func stagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Print the bill stage catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POS\tKEY\tLABEL\tTERMINAL")
			for _, s := range bills.Stages() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", s.Position, s.Key, s.Label, s.Terminal)
			}
			return tw.Flush()
		},
	}
}
