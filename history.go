package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brideal/dealsync/internal/sync"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries to show")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	logger := buildLogger()

	if resolvedCfg.Sync.HistoryDisabled {
		return fmt.Errorf("sync history is disabled in the config (sync.history_disabled)")
	}

	ledger, err := sync.OpenLedger(cmd.Context(), resolvedCfg.Sync.HistoryDBPath, logger)
	if err != nil {
		return fmt.Errorf("opening history ledger: %w", err)
	}
	defer ledger.Close()

	entries, err := ledger.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No sync attempts recorded")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %-22s  %3d row(s)  %s\n",
			e.At.Local().Format(time.DateTime), e.Outcome, e.Rows, e.BackupPath)
		if e.Detail != "" {
			fmt.Printf("%21s%s\n", "", e.Detail)
		}
	}

	return nil
}
