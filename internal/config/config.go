// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for dealsync. It supports a three-layer
// override chain (defaults -> config file -> environment). Credentials are
// never written to the config file: the client secret comes from the
// environment only.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	OAuth      OAuthConfig      `toml:"oauth"`
	SharePoint SharePointConfig `toml:"sharepoint"`
	Sync       SyncConfig       `toml:"sync"`
	Logging    LoggingConfig    `toml:"logging"`
}

// OAuthConfig holds the token endpoint and client identity. The client
// secret is deliberately absent — it is read from DEALSYNC_CLIENT_SECRET so
// it never lands in a file that gets copied around dealership workstations.
type OAuthConfig struct {
	TokenURL       string `toml:"token_url"`
	ClientID       string `toml:"client_id"`
	Scope          string `toml:"scope"`
	TokenCachePath string `toml:"token_cache_path"`
}

// SharePointConfig identifies the site and workbook to sync into, plus the
// failure-notification settings.
type SharePointConfig struct {
	BaseURL          string   `toml:"base_url"`
	SiteID           string   `toml:"site_id"`
	FilePath         string   `toml:"file_path"`
	Sender           string   `toml:"sender"`
	NotifyOnFailure  bool     `toml:"notify_on_failure"`
	NotifyRecipients []string `toml:"notify_recipients"`
}

// SyncConfig controls update behavior: backup location, worksheet targeting,
// write throttling, and the rewrite strategy's lock-retry budget.
type SyncConfig struct {
	BackupDir          string  `toml:"backup_dir"`
	BackupPrefix       string  `toml:"backup_prefix"`
	TargetSheet        string  `toml:"target_sheet"`
	WritesPerSecond    float64 `toml:"writes_per_second"`
	RewriteMaxAttempts int     `toml:"rewrite_max_attempts"`
	RewriteRetryDelay  string  `toml:"rewrite_retry_delay"`
	HistoryDBPath      string  `toml:"history_db_path"`
	HistoryDisabled    bool    `toml:"history_disabled"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}
