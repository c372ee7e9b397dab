package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greencredits/greencredits/internal/domain"
)

func init() {
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List the badge catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tUNLOCKS AT\tDESCRIPTION")
		for _, d := range domain.BadgeCatalog {
			fmt.Fprintf(w, "%s\t%s %s\t%s >= %d\t%s\n", d.Key, d.Icon, d.Name, d.Metric, d.Threshold, d.Description)
		}
		return w.Flush()
	},
}
