// Package config loads the appvault client configuration from
// ~/.appvault/config.yaml, falling back to defaults when the file is
// absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultServerURL is used when no config file or flag overrides it.
const DefaultServerURL = "http://127.0.0.1:5000"

// Config holds client-side settings.
type Config struct {
	// ServerURL is the catalog service base URL.
	ServerURL string `yaml:"server_url"`

	// AppsDir is the encrypted artifact directory.
	AppsDir string `yaml:"apps_dir"`

	// LogsDir holds the error log.
	LogsDir string `yaml:"logs_dir"`

	// ScratchDir is the root for ephemeral decrypted copies. Empty
	// means a directory under the system temp location.
	ScratchDir string `yaml:"scratch_dir"`
}

// ErrorLogPath returns the fixed path of the error log file.
func (c *Config) ErrorLogPath() string {
	return filepath.Join(c.LogsDir, "error_log.json")
}

// Default returns the configuration used when no file exists.
// Directories live under ~/.appvault; the scratch directory lives
// under the system temp directory so decrypted copies land on local
// disk that does not survive reboots on most systems.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	base := filepath.Join(home, ".appvault")
	return &Config{
		ServerURL:  DefaultServerURL,
		AppsDir:    filepath.Join(base, "apps"),
		LogsDir:    filepath.Join(base, "logs"),
		ScratchDir: filepath.Join(os.TempDir(), "appvault-scratch"),
	}, nil
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".appvault", "config.yaml"), nil
}

// Load reads a config file, filling unset fields from Default. A
// missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Restore defaults for fields the file left empty.
	defaults, err := Default()
	if err != nil {
		return nil, err
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.AppsDir == "" {
		cfg.AppsDir = defaults.AppsDir
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = defaults.LogsDir
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = defaults.ScratchDir
	}
	return cfg, nil
}
