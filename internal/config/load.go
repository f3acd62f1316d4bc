package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. A missing config file is fine:
// everything required can come from the environment.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolved is a fully loaded, overridden, and validated configuration.
// It carries the client secret (environment-only) and the parsed rewrite
// retry delay alongside the raw config values.
type Resolved struct {
	Config

	ClientSecret string
	RewriteDelay time.Duration
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables. configPathFlag is the
// --config value, which beats DEALSYNC_CONFIG.
func Resolve(env EnvOverrides, configPathFlag string) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if configPathFlag != "" {
		cfgPath = configPathFlag
	}

	cfg, err := LoadOrDefault(ExpandPath(cfgPath))
	if err != nil {
		return nil, err
	}

	if env.ClientID != "" {
		cfg.OAuth.ClientID = env.ClientID
	}

	if env.SiteID != "" {
		cfg.SharePoint.SiteID = env.SiteID
	}

	if env.FilePath != "" {
		cfg.SharePoint.FilePath = env.FilePath
	}

	cfg.OAuth.TokenCachePath = ExpandPath(cfg.OAuth.TokenCachePath)
	cfg.Sync.BackupDir = ExpandPath(cfg.Sync.BackupDir)
	cfg.Sync.HistoryDBPath = ExpandPath(cfg.Sync.HistoryDBPath)

	delay, err := Validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &Resolved{
		Config:       *cfg,
		ClientSecret: env.ClientSecret,
		RewriteDelay: delay,
	}, nil
}
