package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the on-disk config.yaml layout. It exists for
// writing config files (agentsync init); reads go through the viper
// singleton.
type FileConfig struct {
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Upstream struct {
		BaseURL string `yaml:"base-url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`
	Spool struct {
		Dir string `yaml:"dir"`
	} `yaml:"spool"`
	Daemon struct {
		Log      string `yaml:"log"`
		LogLevel string `yaml:"log-level"`
		LogJSON  bool   `yaml:"log-json"`
		PidFile  string `yaml:"pid-file"`
	} `yaml:"daemon"`
	Sync struct {
		SessionSource string `yaml:"session-source"`
	} `yaml:"sync"`
}

// DefaultFileConfig returns a FileConfig prefilled with the same
// defaults Initialize installs.
func DefaultFileConfig() FileConfig {
	var fc FileConfig
	fc.Upstream.Timeout = "30s"
	fc.Daemon.LogLevel = "info"
	fc.Sync.SessionSource = "sync"
	return fc
}

// WriteFile marshals fc to path, creating parent directories as needed.
// The file is written 0600 since it usually carries the upstream token.
func WriteFile(path string, fc FileConfig) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
