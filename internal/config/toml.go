// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	LogLevel *string        `toml:"log-level"`
	Source   SourceConfig   `toml:"source"`
	Practice PracticeConfig `toml:"practice"`
	Offline  OfflineConfig  `toml:"offline"`
}

// SourceConfig maps dataset source settings.
type SourceConfig struct {
	URL     *string `toml:"url"`
	Timeout *string `toml:"timeout"`
	Retries *int    `toml:"retries"`
}

// PracticeConfig maps deck selection defaults.
type PracticeConfig struct {
	Subject *string `toml:"subject"`
	Size    *string `toml:"size"`
	Options *int    `toml:"options"`
}

// OfflineConfig maps interception layer settings.
type OfflineConfig struct {
	ShellOrigin    *string   `toml:"shell-origin"`
	ShellAssets    *[]string `toml:"shell-assets"`
	ShellVersion   *int      `toml:"shell-version"`
	DataVersion    *int      `toml:"data-version"`
	Listen         *string   `toml:"listen"`
	AllowedOrigins *[]string `toml:"allowed-origins"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
