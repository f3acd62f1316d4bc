package config

// Default values for configuration options. Chosen so a config file only
// needs the fields that identify the tenant and the workbook.
const (
	defaultBaseURL            = "https://graph.microsoft.com/v1.0"
	defaultScope              = "https://graph.microsoft.com/.default"
	defaultBackupPrefix       = "quotes"
	defaultWritesPerSecond    = 4.0
	defaultRewriteMaxAttempts = 3
	defaultRewriteRetryDelay  = "2s"
	defaultLogLevel           = "info"
	defaultLogFormat          = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		OAuth: OAuthConfig{
			Scope:          defaultScope,
			TokenCachePath: DefaultTokenCachePath(),
		},
		SharePoint: SharePointConfig{
			BaseURL: defaultBaseURL,
		},
		Sync: SyncConfig{
			BackupDir:          DefaultBackupDir(),
			BackupPrefix:       defaultBackupPrefix,
			WritesPerSecond:    defaultWritesPerSecond,
			RewriteMaxAttempts: defaultRewriteMaxAttempts,
			RewriteRetryDelay:  defaultRewriteRetryDelay,
			HistoryDBPath:      DefaultHistoryDBPath(),
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
