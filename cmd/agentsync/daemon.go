package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saleswire/agentsync/internal/config"
	"github.com/saleswire/agentsync/internal/engine"
	"github.com/saleswire/agentsync/internal/scheduler"
	"github.com/saleswire/agentsync/internal/storage/postgres"
	"github.com/saleswire/agentsync/internal/telemetry"
	"github.com/saleswire/agentsync/internal/ui"
)

// foregroundEnv marks the re-executed child so it runs the loop directly
// instead of spawning another process.
const foregroundEnv = "AGENTSYNC_DAEMON_FOREGROUND"

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the background sync daemon",
	Long: `Manage the background daemon that keeps every dataset on its
configured interval.

The daemon runs one scheduling loop per shared kind plus one per
whitelisted user for customers and orders. Intervals and enablement are
read from the sync settings table on every tick, so 'agentsync settings'
changes apply without a restart.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync daemon",
	Run: func(cmd *cobra.Command, args []string) {
		opts := daemonOptionsFromFlags(cmd)

		if os.Getenv(foregroundEnv) == "1" {
			runDaemonLoop(opts)
			return
		}

		if running, pid := isDaemonRunning(opts.pidFile); running {
			fmt.Fprintf(os.Stderr, "Error: daemon already running (PID %d)\n", pid)
			fmt.Fprintf(os.Stderr, "Use 'agentsync daemon stop' to stop it first\n")
			os.Exit(1)
		}

		foreground, _ := cmd.Flags().GetBool("foreground")
		if foreground {
			runDaemonLoop(opts)
			return
		}

		pid, err := spawnDaemon(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Daemon started (PID %d)\n", pid)
		if opts.logPath != "" {
			fmt.Printf("Logging to: %s\n", opts.logPath)
		}
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the sync daemon",
	Run: func(cmd *cobra.Command, args []string) {
		pidFile := resolvePIDFile(cmd)

		running, pid := isDaemonRunning(pidFile)
		if !running {
			fmt.Println("Daemon is not running.")
			return
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := sendStopSignal(proc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to signal daemon: %v\n", err)
			os.Exit(1)
		}

		// In-flight pipelines observe the stop at their next checkpoint,
		// so shutdown can take a moment.
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			if !isProcessRunning(pid) {
				fmt.Printf("%s daemon stopped (PID %d)\n", ui.OK(ui.IconOK), pid)
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		fmt.Fprintf(os.Stderr, "%s daemon did not exit within 10s (PID %d)\n", ui.Warn(ui.IconWarn), pid)
		os.Exit(1)
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		pidFile := resolvePIDFile(cmd)
		running, pid := isDaemonRunning(pidFile)

		if jsonOutput {
			out := map[string]interface{}{
				"running":  running,
				"pid_file": pidFile,
			}
			if running {
				out["pid"] = pid
			}
			if dir := config.GetString("spool.dir"); dir != "" {
				if mb, ok := checkDiskSpace(dir); ok {
					out["spool_free_mb"] = mb
				}
			}
			outputJSON(out)
			return
		}

		if running {
			fmt.Printf("%s daemon running (PID %d)\n", ui.OK(ui.IconOK), pid)
		} else {
			fmt.Printf("%s daemon not running\n", ui.Muted(ui.IconSkip))
		}
		fmt.Printf("%s pid file %s\n", ui.Muted(ui.IconSkip), pidFile)
		if dir := config.GetString("spool.dir"); dir != "" {
			if mb, ok := checkDiskSpace(dir); ok {
				line := fmt.Sprintf("spool %s (%d MB free)", dir, mb)
				if mb < 100 {
					fmt.Printf("%s %s\n", ui.Warn(ui.IconWarn), line)
				} else {
					fmt.Printf("%s %s\n", ui.Muted(ui.IconSkip), line)
				}
			}
		}
	},
}

type daemonOptions struct {
	logPath  string
	logLevel string
	logJSON  bool
	pidFile  string
}

// daemonOptionsFromFlags resolves each option as flag, then config file,
// then default.
func daemonOptionsFromFlags(cmd *cobra.Command) daemonOptions {
	opts := daemonOptions{
		logPath:  config.GetString("daemon.log"),
		logLevel: config.GetString("daemon.log-level"),
		logJSON:  config.GetBool("daemon.log-json"),
		pidFile:  defaultPIDFile(),
	}
	if p := config.GetString("daemon.pid-file"); p != "" {
		opts.pidFile = p
	}
	if cmd.Flags().Changed("log") {
		opts.logPath, _ = cmd.Flags().GetString("log")
	}
	if cmd.Flags().Changed("log-level") {
		opts.logLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		opts.logJSON, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("pid-file") {
		opts.pidFile, _ = cmd.Flags().GetString("pid-file")
	}
	return opts
}

func resolvePIDFile(cmd *cobra.Command) string {
	if cmd.Flags().Changed("pid-file") {
		p, _ := cmd.Flags().GetString("pid-file")
		return p
	}
	if p := config.GetString("daemon.pid-file"); p != "" {
		return p
	}
	return defaultPIDFile()
}

func defaultPIDFile() string {
	return filepath.Join(os.TempDir(), "agentsync.pid")
}

// spawnDaemon re-executes the current binary detached from the terminal.
// The child sees AGENTSYNC_DAEMON_FOREGROUND=1 and runs the loop itself.
func spawnDaemon(opts daemonOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	args := []string{"daemon", "start",
		"--log-level", opts.logLevel,
		"--pid-file", opts.pidFile,
	}
	if opts.logPath != "" {
		args = append(args, "--log", opts.logPath)
	}
	if opts.logJSON {
		args = append(args, "--log-json")
	}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	child := exec.Command(exe, args...)
	child.Env = append(os.Environ(), foregroundEnv+"=1")
	child.Stdout = nil
	child.Stderr = nil
	configureDaemonProcess(child)

	if err := child.Start(); err != nil {
		return 0, err
	}
	pid := child.Process.Pid
	// The child owns its own lifecycle from here.
	_ = child.Process.Release()
	return pid, nil
}

func runDaemonLoop(opts daemonOptions) {
	logger, logCloser := setupDaemonLogger(opts.logPath, opts.logJSON, parseLogLevel(opts.logLevel))
	defer func() { _ = logCloser.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), daemonSignals...)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("daemon crashed", "panic", r)
			stackBuf := make([]byte, 4096)
			stackSize := runtime.Stack(stackBuf, false)
			logger.Error("stack trace", "trace", string(stackBuf[:stackSize]))
			_ = os.Remove(opts.pidFile)
			logger.Info("daemon terminated after panic")
		}
	}()

	lock, err := acquireDaemonLock(opts.pidFile)
	if err != nil {
		logger.Error("failed to acquire daemon lock", "error", err)
		return
	}
	defer func() { _ = lock.Close() }()

	if err := writePIDFile(opts.pidFile); err != nil {
		logger.Error("failed to write pid file", "path", opts.pidFile, "error", err)
		return
	}
	defer func() { _ = os.Remove(opts.pidFile) }()

	logger.Info("daemon started", "version", fullVersionString(), "pid", os.Getpid())

	if err := telemetry.Init(ctx, "agentsync", Version); err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	dsn := config.GetString("database.dsn")
	if dsn == "" {
		logger.Error("no database configured")
		logger.Info("hint: set database.dsn in the config file or AGENTSYNC_DATABASE_DSN")
		return
	}
	st, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return
	}
	defer func() { _ = st.Close() }()

	depsFor, err := newDepsFunc(st, logger)
	if err != nil {
		logger.Error("no snapshot source", "error", err)
		return
	}

	metrics := telemetry.NewSyncMetrics()
	sched := scheduler.New(st, depsFor, logger, scheduler.Options{
		OnResult: func(res engine.Result) {
			metrics.Record(context.Background(), res)
		},
	})

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return
	}

	go drainEvents(ctx, sched, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	sched.Stop()
	logger.Info("daemon stopped")
}

// drainEvents consumes the scheduler's event stream so the buffer never
// backs up, and surfaces run outcomes in the daemon log.
func drainEvents(ctx context.Context, sched *scheduler.Scheduler, logger *slog.Logger) {
	dropTicker := time.NewTicker(time.Minute)
	defer dropTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := sched.ResetDroppedEvents(); n > 0 {
				logger.Warn("events dropped before shutdown", "count", n)
			}
			return
		case <-dropTicker.C:
			if n := sched.ResetDroppedEvents(); n > 0 {
				logger.Warn("event consumer fell behind", "dropped", n)
			}
		case ev, ok := <-sched.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case scheduler.EventSyncStart:
				logger.Debug("sync started", "kind", ev.Kind, "user", ev.UserID)
			case scheduler.EventSyncProgress:
				logger.Debug("sync progress", "kind", ev.Kind, "user", ev.UserID, "percent", ev.Percent, "label", ev.Label)
			case scheduler.EventSyncComplete:
				if ev.Result == nil {
					continue
				}
				if ev.Result.Success {
					logger.Info("sync completed",
						"kind", ev.Kind, "user", ev.UserID,
						"processed", ev.Result.Processed,
						"inserted", ev.Result.Inserted,
						"updated", ev.Result.Updated,
						"skipped", ev.Result.Skipped,
						"deleted", ev.Result.Deleted,
						"duration", ev.Result.Duration)
				} else {
					logger.Warn("sync failed",
						"kind", ev.Kind, "user", ev.UserID,
						"failure", ev.Result.Failure.Kind,
						"stage", ev.Result.Failure.Stage,
						"error", ev.Result.Failure)
				}
			}
		}
	}
}

// setupDaemonLogger builds the daemon logger. A configured path gets a
// rotating file; otherwise lines go to stderr.
func setupDaemonLogger(path string, jsonFormat bool, level slog.Level) (*slog.Logger, io.Closer) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = rotating
		closer = rotating
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// acquireDaemonLock takes the advisory lock that prevents two daemons
// from sharing a pid file. The lock lives next to the pid file so it's
// released by the OS if the process dies.
func acquireDaemonLock(pidFile string) (*flock.Flock, error) {
	lock := flock.New(pidFile + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another daemon holds %s", lock.Path())
	}
	return lock, nil
}

func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// isDaemonRunning reads the pid file and checks the process is alive.
// A stale pid file reports not running.
func isDaemonRunning(pidFile string) (bool, int) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}
	if !isProcessRunning(pid) {
		return false, 0
	}
	return true, pid
}

func init() {
	for _, c := range []*cobra.Command{daemonStartCmd, daemonStopCmd, daemonStatusCmd} {
		c.Flags().String("pid-file", "", "Pid file path (default: daemon.pid-file config, then temp dir)")
	}
	daemonStartCmd.Flags().Bool("foreground", false, "Run in the foreground (for systemd/supervisord)")
	daemonStartCmd.Flags().String("log", "", "Log file path (default: daemon.log config; empty logs to stderr)")
	daemonStartCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	daemonStartCmd.Flags().Bool("log-json", false, "Output logs in JSON format")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}
