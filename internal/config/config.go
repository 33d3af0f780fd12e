// Package config holds the viper-backed configuration singleton.
//
// Values resolve in the usual precedence order: explicit Set, environment
// variables, config file, defaults. Environment variables use the
// AGENTSYNC_ prefix with dots and dashes mapped to underscores, so
// `upstream.base-url` becomes AGENTSYNC_UPSTREAM_BASE_URL.
//
// Keys:
//
//	database.dsn         Postgres connection string
//	upstream.base-url    ERP snapshot endpoint base URL
//	upstream.token       bearer token for snapshot downloads
//	upstream.timeout     per-download timeout (duration)
//	spool.dir            directory watched for dropped snapshot files
//	daemon.log           log file path (empty logs to stderr)
//	daemon.log-level     debug | info | warn | error
//	daemon.log-json      emit JSON log lines
//	daemon.pid-file      daemon pid file path
//	sync.session-source  label recorded in change-log source columns
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize builds the configuration singleton. When configFile is empty
// the file is searched at ./agentsync.yaml and then
// ~/.config/agentsync/config.yaml; a missing file is not an error, a
// malformed one is.
func Initialize(configFile string) error {
	nv := viper.New()

	nv.SetDefault("database.dsn", "")
	nv.SetDefault("upstream.base-url", "")
	nv.SetDefault("upstream.token", "")
	nv.SetDefault("upstream.timeout", 30*time.Second)
	nv.SetDefault("spool.dir", "")
	nv.SetDefault("daemon.log", "")
	nv.SetDefault("daemon.log-level", "info")
	nv.SetDefault("daemon.log-json", false)
	nv.SetDefault("daemon.pid-file", "")
	nv.SetDefault("sync.session-source", "sync")

	nv.SetEnvPrefix("AGENTSYNC")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		nv.SetConfigFile(configFile)
		if err := nv.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	v = nv
	return nil
}

// findConfigFile probes the default config locations and returns the
// first one that exists.
func findConfigFile() string {
	if _, err := os.Stat("agentsync.yaml"); err == nil {
		return "agentsync.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "agentsync", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ConfigFileUsed reports the config file the singleton was loaded from,
// or "" when running on defaults and environment only.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// Set overrides a value for the lifetime of the process. Used to apply
// command-line flags on top of the file and environment.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// GetString returns the string value for key. Safe before Initialize.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns the boolean value for key. Safe before Initialize.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns the integer value for key. Safe before Initialize.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration returns the duration value for key. Safe before Initialize.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// AllSettings returns the merged configuration map. Safe before Initialize.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
