package sync

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Attempt is one journal entry: a single UpdateRemote call, successful or
// not.
type Attempt struct {
	ID         string
	At         time.Time
	Rows       int
	BackupPath string
	Strategies string
	Outcome    string
	Detail     string
}

// Ledger is a local SQLite journal of sync attempts, kept so operators can
// answer "did yesterday's push land?" without trawling log files.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLedger opens (creating if needed) the journal database at path and
// runs pending migrations.
func OpenLedger(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sync: opening ledger database: %w", err)
	}
	// The journal is only ever touched by one process; a single connection
	// sidesteps SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sync: reading embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("sync: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("sync: migrating ledger database: %w", err)
	}
	for _, r := range results {
		logger.Debug("applied ledger migration", slog.String("source", r.Source.Path))
	}

	return nil
}

// Record inserts a journal entry, assigning an ID and timestamp when the
// caller left them empty.
func (l *Ledger) Record(ctx context.Context, a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}

	// Unix nanoseconds, so newest-first ordering is numeric rather than a
	// lexicographic comparison of formatted timestamps.
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempts (id, created_at, row_count, backup_path, strategies, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.At.UnixNano(), a.Rows, a.BackupPath, a.Strategies, a.Outcome, a.Detail)
	if err != nil {
		return fmt.Errorf("sync: inserting ledger entry: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, created_at, row_count, backup_path, strategies, outcome, detail
		 FROM attempts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sync: querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Attempt
	for rows.Next() {
		var (
			a  Attempt
			at int64
		)
		if err := rows.Scan(&a.ID, &at, &a.Rows, &a.BackupPath, &a.Strategies, &a.Outcome, &a.Detail); err != nil {
			return nil, fmt.Errorf("sync: scanning ledger entry: %w", err)
		}
		a.At = time.Unix(0, at).UTC()
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync: reading ledger entries: %w", err)
	}

	return entries, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
