package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			scenarios, err := loadScenarios(cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTEPS\tASSERTIONS\tTITLE")
			for _, sc := range scenarios {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", sc.Name, len(sc.Steps), len(sc.Assertions), sc.Title)
			}
			return tw.Flush()
		},
	}
}
