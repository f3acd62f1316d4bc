package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brideal/dealsync/internal/tokencache"
)

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	SiteID       string `json:"site_id"`
	FilePath     string `json:"file_path"`
	BackupDir    string `json:"backup_dir"`
	HistoryDB    string `json:"history_db,omitempty"`
	TokenState   string `json:"token_state"`
	RemoteName   string `json:"remote_name,omitempty"`
	RemoteWebURL string `json:"remote_web_url,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var checkRemote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the configured target and token state",
		Long: `Display the configured SharePoint target, local paths, and cached token
state. With --remote, also resolve the workbook on SharePoint to confirm it
is reachable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, checkRemote)
		},
	}

	cmd.Flags().BoolVar(&checkRemote, "remote", false, "resolve the workbook on SharePoint")

	return cmd
}

func runStatus(cmd *cobra.Command, checkRemote bool) error {
	logger := buildLogger()

	report := statusReport{
		SiteID:    resolvedCfg.SharePoint.SiteID,
		FilePath:  resolvedCfg.SharePoint.FilePath,
		BackupDir: resolvedCfg.Sync.BackupDir,
	}

	if !resolvedCfg.Sync.HistoryDisabled {
		report.HistoryDB = resolvedCfg.Sync.HistoryDBPath
	}

	store := tokencache.New(resolvedCfg.OAuth.TokenCachePath, logger)
	report.TokenState, _ = tokenState(store)

	if checkRemote {
		handle, err := newGraphClient(cmd.Context(), logger).ResolveFile(cmd.Context(),
			resolvedCfg.SharePoint.SiteID, resolvedCfg.SharePoint.FilePath)
		if err != nil {
			return fmt.Errorf("resolving workbook: %w", err)
		}

		report.RemoteName = handle.Name
		report.RemoteWebURL = handle.WebURL
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("Site:       %s\n", report.SiteID)
	fmt.Printf("Workbook:   %s\n", report.FilePath)
	fmt.Printf("Backups:    %s\n", report.BackupDir)
	if report.HistoryDB != "" {
		fmt.Printf("History:    %s\n", report.HistoryDB)
	}
	fmt.Printf("Token:      %s\n", report.TokenState)
	if report.RemoteName != "" {
		fmt.Printf("Remote:     %s (%s)\n", report.RemoteName, report.RemoteWebURL)
	}

	return nil
}
