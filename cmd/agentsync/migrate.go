package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/storage/postgres"
	"github.com/saleswire/agentsync/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create the agents, shared and system schemas and all sync tables.

Migrations are idempotent; running migrate against an up-to-date
database is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		dsn := config.GetString("database.dsn")
		if dsn == "" {
			fmt.Fprintf(os.Stderr, "Error: no database configured\n")
			fmt.Fprintf(os.Stderr, "Hint: set database.dsn in the config file or AGENTSYNC_DATABASE_DSN\n")
			os.Exit(1)
		}

		s, err := postgres.Open(rootCtx, dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = s.Close() }()

		if err := s.Migrate(rootCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: migration failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s schema is up to date\n", ui.OK(ui.IconOK))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
