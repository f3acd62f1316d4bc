package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/brideal/dealsync/internal/graph"
	"github.com/brideal/dealsync/internal/sheet"
)

// Rewrite defaults, used when the corresponding config values are zero.
const (
	DefaultRewriteAttempts = 3
	DefaultRewriteDelay    = 2 * time.Second
)

// DirectRewrite is the fallback strategy: download the whole workbook,
// append the batch rows aligned to the existing header, and upload the
// rebuilt file. The upload is retried on a 423 lock with a fixed delay,
// because lock contention from an open desktop client usually clears
// within seconds.
type DirectRewrite struct {
	client      *graph.Client
	siteID      string
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
}

// NewDirectRewrite creates the rewrite strategy. maxAttempts is the total
// upload attempt budget; values below one fall back to the default.
func NewDirectRewrite(client *graph.Client, siteID string, maxAttempts int, delay time.Duration, logger *slog.Logger) *DirectRewrite {
	if maxAttempts < 1 {
		maxAttempts = DefaultRewriteAttempts
	}
	if delay <= 0 {
		delay = DefaultRewriteDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DirectRewrite{
		client:      client,
		siteID:      siteID,
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger,
	}
}

func (d *DirectRewrite) Name() string { return "direct_rewrite" }

func (d *DirectRewrite) Outcome() Outcome { return OutcomeRewrittenDirect }

// Attempt downloads the current workbook, appends the batch and uploads the
// result. Alignment follows the remote header: batch columns are reordered
// to match, missing values become empty cells, extra batch columns are
// dropped.
func (d *DirectRewrite) Attempt(ctx context.Context, batch *sheet.Batch, handle *graph.FileHandle) error {
	if handle.FileID == "" {
		return ErrBadHandle
	}

	data, err := d.client.DownloadContent(ctx, d.siteID, handle.FileID)
	if err != nil {
		return fmt.Errorf("sync: downloading workbook: %w", err)
	}

	table, err := sheet.DecodeXLSX(data)
	if err != nil {
		return fmt.Errorf("sync: decoding workbook: %w", err)
	}

	before := len(table.Rows)
	table.AppendAligned(batch)
	d.logger.Debug("workbook rebuilt",
		slog.String("worksheet", table.Name),
		slog.Int("existing_rows", before),
		slog.Int("appended_rows", len(table.Rows)-before))

	content, err := sheet.EncodeXLSX(table)
	if err != nil {
		return fmt.Errorf("sync: encoding workbook: %w", err)
	}

	return d.upload(ctx, handle, content)
}

// upload PUTs the rebuilt file, retrying up to the attempt budget. Only the
// upload is retried; the download/rebuild half ran against a snapshot that a
// lock does not invalidate. The PUT goes through a non-retrying client so
// the budget here is the total PUT count — transport-level retry would
// multiply it.
func (d *DirectRewrite) upload(ctx context.Context, handle *graph.FileHandle, content []byte) error {
	backoff := retry.WithMaxRetries(uint64(d.maxAttempts-1), retry.NewConstant(d.delay))
	client := d.client.WithoutRetry()

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		upErr := client.UploadContent(ctx, d.siteID, handle.FileID, content)
		if upErr == nil {
			return nil
		}

		if errors.Is(upErr, graph.ErrLocked) {
			d.logger.Warn("workbook locked, will retry upload",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.maxAttempts),
				slog.Duration("delay", d.delay))
		} else {
			d.logger.Warn("workbook upload failed, will retry",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.maxAttempts),
				slog.Any("error", upErr))
		}

		return retry.RetryableError(upErr)
	})
	if err != nil {
		return fmt.Errorf("sync: uploading workbook after %d attempts: %w", attempt, err)
	}

	return nil
}
