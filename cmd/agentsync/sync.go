package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/types"
	"github.com/saleswire/agentsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run sync pipelines",
	Long: `Run one sync pipeline to completion.

Kinds: customers, orders, products, prices, ddt, invoices.
Customer and order syncs are per-user and require --user; the other
kinds operate on shared data.`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run <kind>",
	Short: "Run one sync pipeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := types.ParseSyncKind(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		userID, _ := cmd.Flags().GetString("user")

		res := runPipeline(kind, userID)
		renderResult(res)
	},
}

var syncForceCmd = &cobra.Command{
	Use:   "force <kind>",
	Short: "Reset a shared dataset and resynchronize it from scratch",
	Long: `Force a full resynchronization of a shared dataset.

For products this deletes the catalog before downloading; for prices it
blanks all stored values so the next pass rewrites them. Only shared
kinds (products, prices) support forced syncs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := types.ParseSyncKind(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !kind.Shared() {
			fmt.Fprintf(os.Stderr, "Error: forced sync is only available for shared kinds\n")
			os.Exit(1)
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			var confirmed bool
			form := huh.NewConfirm().
				Title(fmt.Sprintf("Reset %s and resync from scratch?", kind)).
				Description("Existing rows are cleared before the download starts.").
				Value(&confirmed)
			if err := form.Run(); err != nil || !confirmed {
				fmt.Println("Aborted.")
				os.Exit(1)
			}
		}

		if err := engine.PrepareForced(rootCtx, store, kind); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		res := runPipeline(kind, "")
		renderResult(res)
	},
}

func runPipeline(kind types.SyncKind, userID string) engine.Result {
	depsFor, err := newDepsFunc(store, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	deps := depsFor(kind, userID)
	deps.ShouldStop = func() bool { return rootCtx.Err() != nil }
	if !quietFlag && !jsonOutput {
		deps.Progress = func(percent int, label string) {
			fmt.Printf("%s %3d%% %s\n", ui.Muted("sync"), percent, label)
		}
	}

	return engine.Run(rootCtx, kind, deps, userID)
}

func renderResult(res engine.Result) {
	if jsonOutput {
		out := map[string]interface{}{
			"kind":      string(res.Kind),
			"success":   res.Success,
			"processed": res.Processed,
			"inserted":  res.Inserted,
			"updated":   res.Updated,
			"skipped":   res.Skipped,
			"deleted":   res.Deleted,
			"duration":  res.Duration.String(),
		}
		if res.UserID != "" {
			out["user_id"] = res.UserID
		}
		if len(res.OrderNumberChanges) > 0 {
			out["order_number_changes"] = res.OrderNumberChanges
		}
		if res.Failure != nil {
			out["failure"] = map[string]string{
				"kind":  string(res.Failure.Kind),
				"stage": res.Failure.Stage,
				"error": res.Failure.Error(),
			}
		}
		outputJSON(out)
		if !res.Success {
			os.Exit(1)
		}
		return
	}

	switch {
	case res.Success:
		fmt.Printf("%s %s synced in %s\n", ui.OK(ui.IconOK), res.Kind, res.Duration.Round(time.Millisecond))
		fmt.Printf("  %d processed: %d inserted, %d updated, %d skipped, %d deleted\n",
			res.Processed, res.Inserted, res.Updated, res.Skipped, res.Deleted)
		for _, ch := range res.OrderNumberChanges {
			fmt.Printf("  %s order %s renumbered %s -> %s\n", ui.Muted(ui.IconSkip), ch.OrderID, ch.From, ch.To)
		}
	case res.Failure.Kind == engine.FailureStopped:
		fmt.Printf("%s %s interrupted: %v\n", ui.Warn(ui.IconWarn), res.Kind, res.Failure)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%s %s failed during %s: %v\n", ui.Fail(ui.IconFail), res.Kind, res.Failure.Stage, res.Failure)
		os.Exit(1)
	}
}

func init() {
	syncRunCmd.Flags().String("user", "", "User ID for per-user kinds (customers, orders)")
	syncForceCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncForceCmd)
	rootCmd.AddCommand(syncCmd)
}
