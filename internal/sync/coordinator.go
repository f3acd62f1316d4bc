package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brideal/dealsync/internal/backup"
	"github.com/brideal/dealsync/internal/sheet"
)

// Notifier is told about updates where no strategy succeeded. Notification
// is best-effort; failures are logged, never propagated.
type Notifier interface {
	NotifyFailure(ctx context.Context, backupPath string, rowCount int, attempts []AttemptResult) error
}

// CoordinatorConfig wires a Coordinator. Backups, Resolver, Strategies and
// Logger are required; Ledger and Notifier are optional.
type CoordinatorConfig struct {
	Backups    *backup.Store
	Resolver   Resolver
	Strategies []Strategy
	Ledger     *Ledger
	Notifier   Notifier
	Logger     *slog.Logger
}

// Coordinator runs the full update flow: local backup first, then remote
// resolution, then each strategy in order until one succeeds.
type Coordinator struct {
	backups    *backup.Store
	resolver   Resolver
	strategies []Strategy
	ledger     *Ledger
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewCoordinator creates a Coordinator from cfg.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Backups == nil {
		return nil, errors.New("sync: coordinator requires a backup store")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("sync: coordinator requires a resolver")
	}
	if len(cfg.Strategies) == 0 {
		return nil, errors.New("sync: coordinator requires at least one strategy")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		backups:    cfg.Backups,
		resolver:   cfg.Resolver,
		strategies: cfg.Strategies,
		ledger:     cfg.Ledger,
		notifier:   cfg.Notifier,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// UpdateRemote pushes batch to the remote document. The local backup is
// written before any network traffic, so a returned error never means data
// loss. On total failure the returned error is an *AllFailedError wrapping
// ErrAllStrategiesFailed.
func (c *Coordinator) UpdateRemote(ctx context.Context, batch *sheet.Batch) (outcome Outcome, err error) {
	var (
		backupPath string
		attempts   []AttemptResult
	)
	defer func() {
		c.journal(ctx, batch, backupPath, attempts, outcome, err)
	}()

	backupPath, err = c.backups.Save(batch)
	if err != nil {
		return "", fmt.Errorf("sync: saving local backup: %w", err)
	}
	c.logger.Info("local backup written",
		slog.String("path", backupPath),
		slog.Int("rows", len(batch.Rows)))

	if len(batch.Rows) == 0 {
		return "", ErrEmptyBatch
	}

	handle, err := c.resolver.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("sync: resolving remote document: %w",
			errors.Join(ErrFileNotFound, err))
	}
	c.logger.Debug("remote document resolved",
		slog.String("file_id", handle.FileID),
		slog.String("drive_id", handle.DriveID),
		slog.String("name", handle.Name))

	for _, s := range c.strategies {
		attemptErr := s.Attempt(ctx, batch, handle)
		attempts = append(attempts, AttemptResult{Strategy: s.Name(), Err: attemptErr})
		if attemptErr == nil {
			c.logger.Info("remote update complete",
				slog.String("strategy", s.Name()),
				slog.Int("rows", len(batch.Rows)))

			return s.Outcome(), nil
		}
		c.logger.Warn("update strategy failed",
			slog.String("strategy", s.Name()),
			slog.Any("error", attemptErr))
	}

	failed := &AllFailedError{BackupPath: backupPath, Attempts: attempts}
	c.notifyFailure(ctx, batch, failed)

	return "", failed
}

func (c *Coordinator) notifyFailure(ctx context.Context, batch *sheet.Batch, failed *AllFailedError) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyFailure(ctx, failed.BackupPath, len(batch.Rows), failed.Attempts); err != nil {
		c.logger.Warn("failure notification not sent", slog.Any("error", err))
		return
	}
	c.logger.Info("failure notification sent")
}

// journal records the update in the ledger, when one is configured.
func (c *Coordinator) journal(ctx context.Context, batch *sheet.Batch, backupPath string, attempts []AttemptResult, outcome Outcome, err error) {
	if c.ledger == nil {
		return
	}

	entry := &Attempt{
		At:         c.now(),
		Rows:       len(batch.Rows),
		BackupPath: backupPath,
		Strategies: summarizeAttempts(attempts),
		Outcome:    string(outcome),
	}
	if err != nil {
		entry.Outcome = "failed"
		entry.Detail = err.Error()
	}

	if recErr := c.ledger.Record(ctx, entry); recErr != nil {
		c.logger.Warn("recording sync attempt", slog.Any("error", recErr))
	}
}

func summarizeAttempts(attempts []AttemptResult) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		if a.Err == nil {
			parts[i] = a.Strategy + ":ok"
			continue
		}
		parts[i] = a.Strategy + ":error"
	}

	return strings.Join(parts, ",")
}
