// Package config manages ravenctl user-level configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	ConfigDirName   = ".ravenctl"
	ConfigFileName  = "config.json"
	DefaultLogLevel = "info"
)

// Config holds user-level configuration for the ravenctl CLI. SessionCookie
// is the persisted value of the server's session cookie so consecutive CLI
// invocations share one server-side session, the way a browser tab would.
type Config struct {
	Host          string `json:"host"`
	LogLevel      string `json:"log_level"`
	Insecure      bool   `json:"insecure"`       // Skip TLS verification (lab deployments)
	SessionCookie string `json:"session_cookie"` // tokens.raven cookie value
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
	}
}

// ConfigDir returns the ravenctl config directory path.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName)
}

// Load reads the config from ~/.ravenctl/config.json, returning defaults
// when the file does not exist.
func Load() (Config, error) {
	path := filepath.Join(ConfigDir(), ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save persists the config to ~/.ravenctl/config.json. The file holds the
// session cookie, so it keeps 0600 permissions.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0600)
}
