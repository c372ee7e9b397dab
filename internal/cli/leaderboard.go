package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greencredits/greencredits/internal/app/rewards"
)

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	leaderboardCmd.Flags().IntP("top", "n", 10, "Number of users to show")
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top users from the SQLite store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")

		store, _, err := openPersistentStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := rewards.NewLeaderboard(store, top).Rank(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No accounts yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tNAME\tCREDITS\tREPORTS\tBADGES")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", e.Rank, e.Name, e.TotalCredits, e.ReportCount, e.BadgeCount)
		}
		return w.Flush()
	},
}
