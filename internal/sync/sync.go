// Package sync orchestrates appending record batches to a remote
// spreadsheet: unconditional local backup, remote file resolution, an
// ordered chain of named update strategies (workbook-session append, then
// whole-file rewrite), and an attempt journal for diagnostics.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brideal/dealsync/internal/graph"
	"github.com/brideal/dealsync/internal/sheet"
)

// Outcome names the strategy that completed an update.
type Outcome string

const (
	// OutcomeAppendedViaSession — rows appended incrementally through a
	// workbook session.
	OutcomeAppendedViaSession Outcome = "appended_via_session"

	// OutcomeRewrittenDirect — the whole file was downloaded, extended, and
	// re-uploaded.
	OutcomeRewrittenDirect Outcome = "rewritten_direct"
)

// Sentinel errors surfaced by the coordinator.
var (
	// ErrFileNotFound — the remote document could not be resolved. Not
	// retried; the configuration or the remote path needs fixing.
	ErrFileNotFound = errors.New("sync: remote file not found")

	// ErrEmptyBatch — the batch has no rows. A data error, but the backup
	// has already been written by the time it is reported.
	ErrEmptyBatch = errors.New("sync: batch has no rows")

	// ErrBadHandle — the resolved handle is missing its file or drive ID.
	ErrBadHandle = errors.New("sync: file handle missing file or drive id")

	// ErrAllStrategiesFailed — every strategy in the chain failed. The
	// wrapping AllFailedError carries the backup location.
	ErrAllStrategiesFailed = errors.New("sync: all strategies failed")
)

// AttemptResult records one strategy's outcome within a single update.
type AttemptResult struct {
	Strategy string
	Err      error
}

// AllFailedError reports that every strategy failed, with the local backup
// path so callers can tell the user the data is safe locally but not yet
// synced.
type AllFailedError struct {
	BackupPath string
	Attempts   []AttemptResult
}

func (e *AllFailedError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Strategy
	}

	return fmt.Sprintf("sync: all strategies failed (tried: %s); data saved locally at %s",
		strings.Join(names, ", "), e.BackupPath)
}

func (e *AllFailedError) Unwrap() error {
	return ErrAllStrategiesFailed
}

// Strategy is one named way of pushing a batch to the resolved remote file.
// Attempt failures are failures of the attempt only — the coordinator moves
// to the next strategy in the chain.
type Strategy interface {
	Name() string
	Outcome() Outcome
	Attempt(ctx context.Context, batch *sheet.Batch, handle *graph.FileHandle) error
}

// Resolver locates the remote document. Resolution happens on every update
// because the file's lock and version state is time-sensitive.
type Resolver interface {
	Resolve(ctx context.Context) (*graph.FileHandle, error)
}

// FileLocator resolves a fixed site-relative document path through a graph
// client. It is the production Resolver.
type FileLocator struct {
	client   *graph.Client
	siteID   string
	filePath string
}

// NewFileLocator creates a Resolver for the given site and document path.
func NewFileLocator(client *graph.Client, siteID, filePath string) *FileLocator {
	return &FileLocator{client: client, siteID: siteID, filePath: filePath}
}

// Resolve looks the document up by path, falling back to a folder search.
func (l *FileLocator) Resolve(ctx context.Context) (*graph.FileHandle, error) {
	return l.client.ResolveFile(ctx, l.siteID, l.filePath)
}
