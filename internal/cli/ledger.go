package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
)

// ─── Ledger CLI ─────────────────────────────────────────────────────────────
// Offline inspection and adjustment of credit accounts in the SQLite store.
// Writes go through the award engine, so multipliers and badges apply exactly
// as they do for API traffic.

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)
	ledgerCmd.AddCommand(ledgerAwardCmd)
	ledgerCmd.AddCommand(ledgerMultiplierCmd)

	ledgerAwardCmd.Flags().Int64("amount", 0, "Credits to award instead of the action's base amount")
	ledgerAwardCmd.Flags().Int64("report", 0, "Report the award relates to")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and adjust credit accounts",
	Long: `Inspect and adjust credit accounts in the SQLite store.
These commands can run next to a server using the same database. Every write
is one SQL transaction that adds to the stored balances, so neither side
overwrites credits the other posted.`,
}

// ─── ledger show ────────────────────────────────────────────────────────────

var ledgerShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "Show a user's balance and badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *rewards.Engine, store domain.Store) error {
			ctx := cmd.Context()
			acct, err := store.GetAccount(ctx, args[0])
			if err != nil {
				return err
			}
			badges, err := e.Badges(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:       %s\n", acct.UserID)
			fmt.Fprintf(out, "Total:      %d\n", acct.TotalCredits)
			fmt.Fprintf(out, "Available:  %d\n", acct.AvailableCredits)
			fmt.Fprintf(out, "Redeemed:   %d\n", acct.Redeemed)
			fmt.Fprintf(out, "Reports:    %d (%d with GPS)\n", acct.ReportCount, acct.GPSReportCount)
			fmt.Fprintf(out, "Streak:     %d days\n", acct.Streak)
			fmt.Fprintf(out, "Multiplier: %g\n", acct.Multiplier)
			for _, b := range badges {
				fmt.Fprintf(out, "Badge:      %s %s (%s)\n", b.Icon, b.Name, b.EarnedAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

// ─── ledger history ─────────────────────────────────────────────────────────

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history USER_ID",
	Short: "List a user's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *rewards.Engine, _ domain.Store) error {
			txs, err := e.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tACTION\tCREDITS\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%+d\t%s\n",
					tx.ID, tx.Timestamp.Format("2006-01-02 15:04"), tx.Action, tx.Amount, tx.Description)
			}
			return w.Flush()
		})
	},
}

// ─── ledger award ───────────────────────────────────────────────────────────

var ledgerAwardCmd = &cobra.Command{
	Use:   "award USER_ID ACTION",
	Short: "Credit an action to a user",
	Long: `Credit an action (e.g. BADGE_BONUS, REPORT_VERIFIED) to a user. The
user's multiplier applies and badges are re-evaluated afterwards.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := domain.ParseActionKind(args[1])
		if err != nil {
			return err
		}
		amount, _ := cmd.Flags().GetInt64("amount")
		var reportID *int64
		if id, _ := cmd.Flags().GetInt64("report"); id > 0 {
			reportID = &id
		}

		return withEngine(cmd, func(e *rewards.Engine, _ domain.Store) error {
			res, err := e.Award(cmd.Context(), args[0], action, reportID, amount)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Award != nil {
				fmt.Fprintf(out, "Awarded %d credits for %s\n", res.Award.Credits, res.Award.Action)
			}
			for _, b := range res.NewBadges {
				fmt.Fprintf(out, "Unlocked %s %s\n", b.Icon, b.Name)
			}
			fmt.Fprintf(out, "Total %d, available %d\n", res.Total, res.Available)
			return nil
		})
	},
}

// ─── ledger multiplier ──────────────────────────────────────────────────────

var ledgerMultiplierCmd = &cobra.Command{
	Use:   "multiplier USER_ID VALUE",
	Short: "Set a user's award multiplier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("multiplier %q is not a number", args[1])
		}
		return withEngine(cmd, func(e *rewards.Engine, _ domain.Store) error {
			acct, err := e.SetMultiplier(cmd.Context(), args[0], m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Multiplier for %s is now %g\n", acct.UserID, acct.Multiplier)
			return nil
		})
	},
}

func withEngine(cmd *cobra.Command, fn func(*rewards.Engine, domain.Store) error) error {
	store, cfg, err := openPersistentStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(rewards.NewEngine(store, cfg.Credits.Rewards(), nil), store)
}
