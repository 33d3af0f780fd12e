package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file",
	Long: `Create an agentsync config file.

Without flags this runs an interactive form. Use --no-input to write a
template with defaults and fill it in by hand.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")
		noInput, _ := cmd.Flags().GetBool("no-input")

		if !force {
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
				os.Exit(1)
			}
		}

		fc := config.DefaultFileConfig()

		if !noInput {
			if err := runInitForm(&fc); err != nil {
				fmt.Fprintf(os.Stderr, "Aborted: %v\n", err)
				os.Exit(1)
			}
		}

		if err := config.WriteFile(path, fc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s wrote %s\n", ui.OK(ui.IconOK), path)
		fmt.Printf("%s run 'agentsync migrate' to create the schema, then 'agentsync daemon start'\n", ui.Muted(ui.IconSkip))
	},
}

func runInitForm(fc *config.FileConfig) error {
	var logJSON bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Postgres DSN").
				Description("Connection string for the shared store").
				Placeholder("postgres://agentsync@localhost:5432/agents").
				Value(&fc.Database.DSN).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a database DSN is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Upstream base URL").
				Description("ERP snapshot endpoint (leave empty when using a spool directory)").
				Placeholder("https://erp.example.com/export").
				Value(&fc.Upstream.BaseURL),

			huh.NewInput().
				Title("Upstream token").
				Description("Bearer token for snapshot downloads").
				EchoMode(huh.EchoModePassword).
				Value(&fc.Upstream.Token),

			huh.NewInput().
				Title("Spool directory").
				Description("Directory watched for dropped snapshot files (optional)").
				Value(&fc.Spool.Dir),

			huh.NewInput().
				Title("Daemon log file").
				Description("Rotating log path; empty logs to stderr").
				Placeholder("/var/log/agentsync/daemon.log").
				Value(&fc.Daemon.Log),

			huh.NewConfirm().
				Title("JSON log lines?").
				Value(&logJSON),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	fc.Daemon.LogJSON = logJSON
	return nil
}

func init() {
	initCmd.Flags().String("output", "agentsync.yaml", "Where to write the config file")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("no-input", false, "Write a template with defaults instead of prompting")

	rootCmd.AddCommand(initCmd)
}
