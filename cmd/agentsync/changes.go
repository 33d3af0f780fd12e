package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/timeparsing"
	"github.com/saleswire/agentsync/internal/types"
	"github.com/saleswire/agentsync/internal/ui"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Inspect the change journals written by sync runs",
	Long: `Inspect the product change journal and price history.

--since accepts compact durations (-1d, -6h), absolute dates (2026-08-01)
and natural language ("yesterday", "3 days ago").`,
}

var changesProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List product catalog changes",
	Run: func(cmd *cobra.Command, args []string) {
		since := parseSinceFlag(cmd)

		changes, err := store.ListProductChanges(rootCtx, since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(changes)
			return
		}
		if len(changes) == 0 {
			fmt.Println("No product changes in the selected window.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "WHEN\tPRODUCT\tCHANGE\tSESSION")
		for _, ch := range changes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				time.Unix(ch.ChangedAt, 0).Format("2006-01-02 15:04"),
				ch.ProductID,
				renderChangeAction(ch.ChangeType),
				ch.SyncSessionID)
		}
		w.Flush()
	},
}

var changesPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "List price movements",
	Run: func(cmd *cobra.Command, args []string) {
		since := parseSinceFlag(cmd)

		entries, err := store.ListPriceHistory(rootCtx, since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No price movements in the selected window.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "WHEN\tPRODUCT\tVARIANT\tOLD\tNEW\tCHANGE")
		for _, e := range entries {
			variant := "-"
			if e.VariantID != nil && *e.VariantID != "" {
				variant = *e.VariantID
			}
			oldPrice := "-"
			if e.OldPrice != nil {
				oldPrice = *e.OldPrice
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				time.Unix(e.SyncDate, 0).Format("2006-01-02 15:04"),
				e.ProductID,
				variant,
				oldPrice,
				e.NewPrice,
				renderPriceChange(e))
		}
		w.Flush()
	},
}

func parseSinceFlag(cmd *cobra.Command) int64 {
	since, _ := cmd.Flags().GetString("since")
	t, err := timeparsing.ParseRelativeTime(since, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --since value: %v\n", err)
		os.Exit(1)
	}
	return t.Unix()
}

func renderChangeAction(a types.ChangeAction) string {
	switch a {
	case types.ChangeCreated:
		return ui.OK(string(a))
	case types.ChangeDeleted:
		return ui.Fail(string(a))
	default:
		return ui.Accent(string(a))
	}
}

func renderPriceChange(e *types.PriceHistoryEntry) string {
	label := string(e.ChangeType)
	if e.PercentageChange != nil {
		label = fmt.Sprintf("%s %s%%", label, *e.PercentageChange)
	}
	switch e.ChangeType {
	case types.PriceChangeIncrease:
		return ui.Warn(label)
	case types.PriceChangeDecrease:
		return ui.Accent(label)
	default:
		return ui.Muted(label)
	}
}

func init() {
	changesProductsCmd.Flags().String("since", "-1d", "Window start (compact duration, date, or natural language)")
	changesPricesCmd.Flags().String("since", "-1d", "Window start (compact duration, date, or natural language)")

	changesCmd.AddCommand(changesProductsCmd)
	changesCmd.AddCommand(changesPricesCmd)
	rootCmd.AddCommand(changesCmd)
}
