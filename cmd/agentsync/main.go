package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/storage"
	"github.com/saleswire/agentsync/internal/storage/postgres"
)

var (
	cfgFile    string
	dbDSN      string
	jsonOutput bool

	verboseFlag bool
	quietFlag   bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	store storage.Store
	log   *slog.Logger
)

// noStoreCommands lists commands that never touch the database. The daemon
// subcommands manage their own store lifecycle inside the daemon process.
var noStoreCommands = map[string]bool{
	"version":    true,
	"init":       true,
	"migrate":    true,
	"daemon":     true,
	"help":       true,
	"completion": true,
}

func requiresStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if noStoreCommands[c.Name()] {
			return false
		}
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:   "agentsync",
	Short: "agentsync - ERP snapshot synchronizer for agent workspaces",
	Long: `agentsync keeps customers, orders, products, prices, delivery notes and
invoices synchronized from the upstream ERP into the shared Postgres store.

Run pipelines once with 'agentsync sync run', or keep them on their
configured intervals with 'agentsync daemon start'.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("agentsync version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Initialize(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		applyFlagOverrides()
		setupSignalContext()
		log = cliLogger()

		if !requiresStore(cmd) {
			return
		}
		if err := openStore(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Hint: set database.dsn in the config file or AGENTSYNC_DATABASE_DSN\n")
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
			store = nil
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./agentsync.yaml, ~/.config/agentsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "Postgres DSN (overrides database.dsn)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// applyFlagOverrides layers command-line flags on top of file and env config.
func applyFlagOverrides() {
	if dbDSN != "" {
		config.Set("database.dsn", dbDSN)
	}
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// cliLogger builds the stderr logger for one-shot commands. The daemon
// builds its own file-backed logger instead.
func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	if quietFlag {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore() error {
	dsn := config.GetString("database.dsn")
	if dsn == "" {
		return fmt.Errorf("no database configured")
	}
	s, err := postgres.Open(rootCtx, dsn)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	store = s
	return nil
}

func outputJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
