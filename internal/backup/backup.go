// Package backup writes every outgoing batch to local disk before any remote
// mutation is attempted. Backups are the system's data-safety floor: if every
// remote strategy fails, the user still has the rows on disk in both tabular
// and structured form.
package backup

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/brideal/dealsync/internal/sheet"
)

// DirPerms is used when creating the backup directory.
const DirPerms = 0o755

// FilePerms for backup artifacts. Backups are plain business records, not
// secrets.
const FilePerms = 0o644

// baseNameLayout produces the timestamp-derived base name shared by the two
// artifacts of one batch.
const baseNameLayout = "20060102_150405"

// Store writes batch backups under a fixed local directory, created on first
// use. Artifacts are never overwritten and never pruned.
type Store struct {
	dir    string
	prefix string
	logger *slog.Logger

	// now is the clock used for base names. Tests override this.
	now func() time.Time
}

// New creates a Store rooted at dir. prefix is prepended to every base name
// (e.g. "quotes").
func New(dir, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dir:    dir,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// Dir returns the backup directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the batch as a co-located CSV and JSON pair and returns the
// CSV path. Both writes must succeed; a failure of either is a failure of
// the save. Existing files are never overwritten — a name collision is an
// error, not a replace.
func (s *Store) Save(batch *sheet.Batch) (string, error) {
	if err := os.MkdirAll(s.dir, DirPerms); err != nil {
		return "", fmt.Errorf("backup: creating directory %s: %w", s.dir, err)
	}

	base := fmt.Sprintf("%s_%s", s.prefix, s.now().Format(baseNameLayout))
	csvPath := filepath.Join(s.dir, base+".csv")
	jsonPath := filepath.Join(s.dir, base+".json")

	if err := s.writeCSV(csvPath, batch); err != nil {
		return "", err
	}

	if err := s.writeJSON(jsonPath, batch); err != nil {
		return "", err
	}

	s.logger.Info("local backup saved",
		slog.String("csv", csvPath),
		slog.String("json", jsonPath),
		slog.Int("rows", len(batch.Rows)),
	)

	return csvPath, nil
}

// writeCSV writes the tabular artifact: header row, then one line per record.
func (s *Store) writeCSV(path string, batch *sheet.Batch) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerms)
	if err != nil {
		return fmt.Errorf("backup: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(batch.Columns); err != nil {
		return fmt.Errorf("backup: writing csv header: %w", err)
	}

	for _, row := range batch.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = sheet.CellString(cell)
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("backup: writing csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("backup: flushing csv: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("backup: syncing csv: %w", err)
	}

	return nil
}

// writeJSON writes the structured artifact: the batch as a list of
// column→value records, indented for human inspection.
func (s *Store) writeJSON(path string, batch *sheet.Batch) error {
	data, err := json.MarshalIndent(batch.Records(), "", "  ")
	if err != nil {
		return fmt.Errorf("backup: encoding json: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerms)
	if err != nil {
		return fmt.Errorf("backup: creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("backup: writing json: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("backup: syncing json: %w", err)
	}

	return nil
}
