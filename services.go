package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brideal/dealsync/internal/backup"
	"github.com/brideal/dealsync/internal/graph"
	"github.com/brideal/dealsync/internal/oauth"
	"github.com/brideal/dealsync/internal/sync"
	"github.com/brideal/dealsync/internal/tokencache"
)

// newOAuthClient wires the token cache and OAuth client from the resolved
// configuration.
func newOAuthClient(logger *slog.Logger) *oauth.Client {
	store := tokencache.New(resolvedCfg.OAuth.TokenCachePath, logger)
	creds := oauth.Credentials{
		ClientID:     resolvedCfg.OAuth.ClientID,
		ClientSecret: resolvedCfg.ClientSecret,
	}

	return oauth.NewClient(resolvedCfg.OAuth.TokenURL, creds, resolvedCfg.OAuth.Scope,
		store, defaultHTTPClient(), logger)
}

// newGraphClient wires a Graph API client whose bearer tokens come from the
// OAuth client's cache-or-acquire flow.
func newGraphClient(ctx context.Context, logger *slog.Logger) *graph.Client {
	return graph.NewClient(resolvedCfg.SharePoint.BaseURL, defaultHTTPClient(),
		newOAuthClient(logger).Source(ctx), logger)
}

// newCoordinator assembles the full update pipeline: backup store, file
// locator, session-append and direct-rewrite strategies, the history ledger,
// and the optional failure notifier. The returned cleanup closes the ledger.
func newCoordinator(ctx context.Context, logger *slog.Logger) (*sync.Coordinator, func(), error) {
	client := newGraphClient(ctx, logger)
	sp := resolvedCfg.SharePoint

	cfg := sync.CoordinatorConfig{
		Backups:  backup.New(resolvedCfg.Sync.BackupDir, resolvedCfg.Sync.BackupPrefix, logger),
		Resolver: sync.NewFileLocator(client, sp.SiteID, sp.FilePath),
		Strategies: []sync.Strategy{
			sync.NewSessionAppend(client, resolvedCfg.Sync.WritesPerSecond, logger),
			sync.NewDirectRewrite(client, sp.SiteID, resolvedCfg.Sync.RewriteMaxAttempts,
				resolvedCfg.RewriteDelay, logger),
		},
		Logger: logger,
	}

	cleanup := func() {}

	if !resolvedCfg.Sync.HistoryDisabled {
		ledger, err := sync.OpenLedger(ctx, resolvedCfg.Sync.HistoryDBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history ledger: %w", err)
		}

		cfg.Ledger = ledger
		cleanup = func() { _ = ledger.Close() }
	}

	if sp.NotifyOnFailure {
		cfg.Notifier = sync.NewMailNotifier(client, sp.Sender, sp.NotifyRecipients)
	}

	coord, err := sync.NewCoordinator(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return coord, cleanup, nil
}
