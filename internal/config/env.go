package config

import "os"

// Environment variable names for overrides. The client secret has no TOML
// counterpart — the environment is its only source.
const (
	EnvConfig       = "DEALSYNC_CONFIG"
	EnvClientID     = "DEALSYNC_CLIENT_ID"
	EnvClientSecret = "DEALSYNC_CLIENT_SECRET"
	EnvSiteID       = "DEALSYNC_SITE_ID"
	EnvFilePath     = "DEALSYNC_FILE_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // DEALSYNC_CONFIG: override config file path
	ClientID     string // DEALSYNC_CLIENT_ID: override oauth client id
	ClientSecret string // DEALSYNC_CLIENT_SECRET: oauth client secret (env-only)
	SiteID       string // DEALSYNC_SITE_ID: override SharePoint site id
	FilePath     string // DEALSYNC_FILE_PATH: override workbook path
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the relevant
// fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		SiteID:       os.Getenv(EnvSiteID),
		FilePath:     os.Getenv(EnvFilePath),
	}
}
