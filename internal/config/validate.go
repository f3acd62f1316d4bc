package config

import (
	"errors"
	"fmt"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

// Validate checks a loaded Config for internal consistency and returns the
// parsed rewrite retry delay. Fields that identify the tenant and workbook
// are required; everything else has a working default.
func Validate(cfg *Config) (time.Duration, error) {
	var errs []error

	if cfg.OAuth.TokenURL == "" {
		errs = append(errs, errors.New("oauth.token_url is required"))
	}

	if cfg.OAuth.ClientID == "" {
		errs = append(errs, fmt.Errorf("oauth.client_id is required (or set %s)", EnvClientID))
	}

	if cfg.OAuth.TokenCachePath == "" {
		errs = append(errs, errors.New("oauth.token_cache_path is required"))
	}

	if cfg.SharePoint.SiteID == "" {
		errs = append(errs, fmt.Errorf("sharepoint.site_id is required (or set %s)", EnvSiteID))
	}

	if cfg.SharePoint.FilePath == "" {
		errs = append(errs, fmt.Errorf("sharepoint.file_path is required (or set %s)", EnvFilePath))
	}

	if cfg.SharePoint.NotifyOnFailure {
		if cfg.SharePoint.Sender == "" {
			errs = append(errs, errors.New("sharepoint.sender is required when notify_on_failure is set"))
		}

		if len(cfg.SharePoint.NotifyRecipients) == 0 {
			errs = append(errs, errors.New("sharepoint.notify_recipients is required when notify_on_failure is set"))
		}
	}

	if cfg.Sync.BackupDir == "" {
		errs = append(errs, errors.New("sync.backup_dir is required"))
	}

	if cfg.Sync.WritesPerSecond < 0 {
		errs = append(errs, errors.New("sync.writes_per_second must not be negative"))
	}

	if cfg.Sync.RewriteMaxAttempts < 1 {
		errs = append(errs, errors.New("sync.rewrite_max_attempts must be at least 1"))
	}

	delay, err := time.ParseDuration(cfg.Sync.RewriteRetryDelay)
	if err != nil {
		errs = append(errs, fmt.Errorf("sync.rewrite_retry_delay: %w", err))
	} else if delay <= 0 {
		errs = append(errs, errors.New("sync.rewrite_retry_delay must be positive"))
	}

	if !validLogLevels[cfg.Logging.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level %q is not one of debug, info, warn, error", cfg.Logging.LogLevel))
	}

	if !validLogFormats[cfg.Logging.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format %q is not one of auto, text, json", cfg.Logging.LogFormat))
	}

	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	return delay, nil
}
