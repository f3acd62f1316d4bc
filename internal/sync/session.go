package sync

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/brideal/dealsync/internal/graph"
	"github.com/brideal/dealsync/internal/sheet"
)

// SessionAppend appends rows one at a time inside a persisted workbook
// session. It needs no download of the existing file, so it is the
// preferred first strategy; it fails when the workbook API rejects the
// session (typically because the file is checked out or locked).
type SessionAppend struct {
	client  *graph.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSessionAppend creates the session strategy. writesPerSecond throttles
// the per-row range updates; zero or negative disables throttling.
func NewSessionAppend(client *graph.Client, writesPerSecond float64, logger *slog.Logger) *SessionAppend {
	var limiter *rate.Limiter
	if writesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(writesPerSecond), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionAppend{client: client, limiter: limiter, logger: logger}
}

func (s *SessionAppend) Name() string { return "session_append" }

func (s *SessionAppend) Outcome() Outcome { return OutcomeAppendedViaSession }

// Attempt opens a workbook session, finds the first free row beneath the
// used range, and writes each batch row as its own single-row range update.
// The session is always closed, success or failure.
func (s *SessionAppend) Attempt(ctx context.Context, batch *sheet.Batch, handle *graph.FileHandle) error {
	if handle.FileID == "" || handle.DriveID == "" {
		return ErrBadHandle
	}

	sessionID, err := s.client.CreateWorkbookSession(ctx, handle.DriveID, handle.FileID)
	if err != nil {
		return fmt.Errorf("sync: opening workbook session: %w", err)
	}
	defer func() {
		if closeErr := s.client.CloseWorkbookSession(ctx, handle.DriveID, handle.FileID, sessionID); closeErr != nil {
			s.logger.Warn("closing workbook session", slog.Any("error", closeErr))
		}
	}()

	worksheet, err := s.pickWorksheet(ctx, batch, handle, sessionID)
	if err != nil {
		return err
	}

	rowCount, err := s.client.UsedRangeRowCount(ctx, handle.DriveID, handle.FileID, worksheet, sessionID)
	if err != nil {
		return fmt.Errorf("sync: reading used range: %w", err)
	}

	startRow := rowCount + 1
	endColumn := sheet.ColumnLetter(len(batch.Columns))
	s.logger.Debug("appending via workbook session",
		slog.String("worksheet", worksheet),
		slog.Int("start_row", startRow),
		slog.Int("rows", len(batch.Rows)))

	for i, row := range batch.Rows {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("sync: waiting for write slot: %w", err)
			}
		}

		rowNum := startRow + i
		address := fmt.Sprintf("%s!A%d:%s%d", worksheet, rowNum, endColumn, rowNum)
		if err := s.client.UpdateRange(ctx, handle.DriveID, handle.FileID, worksheet, address, sessionID, [][]any{row}); err != nil {
			return fmt.Errorf("sync: writing row %d of %d: %w", i+1, len(batch.Rows), err)
		}
	}

	return nil
}

// pickWorksheet returns the batch's target sheet, or the workbook's first
// worksheet when no target was set.
func (s *SessionAppend) pickWorksheet(ctx context.Context, batch *sheet.Batch, handle *graph.FileHandle, sessionID string) (string, error) {
	if batch.TargetSheet != "" {
		return batch.TargetSheet, nil
	}

	names, err := s.client.Worksheets(ctx, handle.DriveID, handle.FileID, sessionID)
	if err != nil {
		return "", fmt.Errorf("sync: listing worksheets: %w", err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("sync: workbook %s has no worksheets", handle.Name)
	}

	return names[0], nil
}
