package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/types"
	"github.com/saleswire/agentsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store health, schedules and per-user sync stamps",
	Run: func(cmd *cobra.Command, args []string) {
		pingErr := store.Ping(rootCtx)
		settings, settingsErr := store.SyncSettings(rootCtx)
		users, usersErr := store.ListWhitelistedUsers(rootCtx)

		if jsonOutput {
			out := map[string]interface{}{
				"store_ok": pingErr == nil,
				"config":   config.ConfigFileUsed(),
			}
			if pingErr != nil {
				out["store_error"] = pingErr.Error()
			}
			if settingsErr == nil {
				out["settings"] = settings
			}
			if usersErr == nil {
				out["users"] = users
			}
			outputJSON(out)
			return
		}

		fmt.Println(ui.Header("STORE"))
		if pingErr == nil {
			fmt.Printf("%s connected\n", ui.OK(ui.IconOK))
		} else {
			fmt.Printf("%s unreachable: %v\n", ui.Fail(ui.IconFail), pingErr)
		}
		if cf := config.ConfigFileUsed(); cf != "" {
			fmt.Printf("%s config %s\n", ui.Muted(ui.IconSkip), cf)
		}

		fmt.Println()
		fmt.Println(ui.Header("SCHEDULES"))
		if settingsErr != nil {
			fmt.Printf("%s %v\n", ui.Warn(ui.IconWarn), settingsErr)
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "KIND\tINTERVAL\tENABLED")
			for _, kind := range types.AllSyncKinds() {
				s, ok := settings[kind]
				if !ok {
					fmt.Fprintf(w, "%s\t%dm\t%s\n", kind, types.DefaultIntervalMinutes(kind), ui.Muted("default"))
					continue
				}
				enabled := ui.OK("yes")
				if !s.Enabled {
					enabled = ui.Muted("no")
				}
				fmt.Fprintf(w, "%s\t%dm\t%s\n", kind, s.IntervalMinutes, enabled)
			}
			w.Flush()
		}

		fmt.Println()
		fmt.Println(ui.Header("USERS"))
		switch {
		case usersErr != nil:
			fmt.Printf("%s %v\n", ui.Warn(ui.IconWarn), usersErr)
		case len(users) == 0:
			fmt.Println("No whitelisted users; per-user kinds are idle.")
		default:
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCUSTOMERS SYNCED\tORDERS SYNCED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Role,
					formatUnixPtr(u.LastCustomerSync),
					formatUnixPtr(u.LastOrderSync))
			}
			w.Flush()
		}
	},
}

func formatUnixPtr(ts *int64) string {
	if ts == nil || *ts == 0 {
		return "never"
	}
	return time.Unix(*ts, 0).Format("2006-01-02 15:04")
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
