package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/types"
	"github.com/saleswire/agentsync/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change sync schedules",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show interval and enabled state for every kind",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := store.SyncSettings(rootCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(settings)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KIND\tINTERVAL\tENABLED\tUPDATED")
		for _, kind := range types.AllSyncKinds() {
			s, ok := settings[kind]
			if !ok {
				fmt.Fprintf(w, "%s\t%dm\t%s\t%s\n", kind, types.DefaultIntervalMinutes(kind), "default", "-")
				continue
			}
			enabled := ui.OK("yes")
			if !s.Enabled {
				enabled = ui.Muted("no")
			}
			updated := "-"
			if s.UpdatedAt > 0 {
				updated = time.Unix(s.UpdatedAt, 0).Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%dm\t%s\t%s\n", kind, s.IntervalMinutes, enabled, updated)
		}
		w.Flush()
	},
}

var settingsIntervalCmd = &cobra.Command{
	Use:   "set-interval <kind> <minutes>",
	Short: "Change how often a kind is synchronized",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := types.ParseSyncKind(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil || minutes <= 0 {
			fmt.Fprintf(os.Stderr, "Error: interval must be a positive number of minutes (got %q)\n", args[1])
			os.Exit(1)
		}
		if err := store.UpdateSyncInterval(rootCtx, kind, minutes); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s interval to %dm\n", kind, minutes)
	},
}

var settingsEnableCmd = &cobra.Command{
	Use:   "enable <kind>",
	Short: "Enable scheduled syncs for a kind",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setEnabled(args[0], true)
	},
}

var settingsDisableCmd = &cobra.Command{
	Use:   "disable <kind>",
	Short: "Disable scheduled syncs for a kind",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setEnabled(args[0], false)
	},
}

func setEnabled(arg string, enabled bool) {
	kind, err := types.ParseSyncKind(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetSyncEnabled(rootCtx, kind, enabled); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Sync %s for %s\n", state, kind)
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsIntervalCmd)
	settingsCmd.AddCommand(settingsEnableCmd)
	settingsCmd.AddCommand(settingsDisableCmd)
	rootCmd.AddCommand(settingsCmd)
}
