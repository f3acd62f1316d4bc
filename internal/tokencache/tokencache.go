// Package tokencache handles reading and writing the OAuth token cache file.
// The on-disk JSON field names are a stable contract shared with external
// diagnostic tooling and must not change. This is a leaf package imported by
// both oauth/ and the CLI to break any config→oauth import cycle.
package tokencache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FilePerms restricts the cache file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the cache directory.
const DirPerms = 0o700

// ExpiryGrace is the margin before the recorded expiry at which a token is
// already treated as expired. A token within five minutes of expiry may not
// survive a slow request, so it is never handed out.
const ExpiryGrace = 300 * time.Second

// Record is the on-disk format of the token cache. Field names mirror the
// token endpoint response plus the expires_at stamp added at acquisition
// time (unix seconds, fractional).
type Record struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	ExpiresIn    int64   `json:"expires_in"`
	ExpiresAt    float64 `json:"expires_at"`
	Scope        string  `json:"scope,omitempty"`
}

// Store persists a single token Record to a file-backed cache.
// One Store instance per process is assumed to own the cache path;
// no cross-process locking is provided.
type Store struct {
	path   string
	logger *slog.Logger

	// now is the clock used for expiry checks. Tests override this.
	now func() time.Time
}

// New creates a Store for the given cache file path.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cached token record. It fails soft: a missing file,
// malformed JSON, or a record without an access token all return nil
// rather than an error, so callers fall through to re-acquisition.
func (s *Store) Load() *Record {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		s.logger.Warn("token cache unreadable, ignoring",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("token cache malformed, ignoring",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	if rec.AccessToken == "" {
		s.logger.Warn("token cache missing access_token, ignoring",
			slog.String("path", s.path),
		)

		return nil
	}

	return &rec
}

// Save writes the record to the cache file atomically (write-to-temp +
// rename) with 0600 permissions, creating the parent directory if absent.
// A partial write can never corrupt a previously valid cache.
// Never logs token values.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("tokencache: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokencache: creating directory %s: %w", dir, mkErr)
	}

	// Temp file in the same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokencache: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokencache: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokencache: writing: %w", err)
	}

	// Flush to stable storage before rename so a crash between close and
	// rename cannot leave an empty or partial cache at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokencache: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokencache: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("tokencache: renaming: %w", err)
	}

	success = true

	s.logger.Debug("saved token cache",
		slog.String("path", s.path),
		slog.Float64("expires_at", rec.ExpiresAt),
	)

	return nil
}

// IsValid reports whether the record's expiry is more than ExpiryGrace
// in the future. A nil record is never valid.
func (s *Store) IsValid(rec *Record) bool {
	if rec == nil || rec.AccessToken == "" {
		return false
	}

	nowUnix := float64(s.now().UnixNano()) / float64(time.Second)

	return rec.ExpiresAt-nowUnix > ExpiryGrace.Seconds()
}

// Clear removes the cache file. Returns nil if the file does not exist
// (already logged out).
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no token cache to remove",
			slog.String("path", s.path),
		)

		return nil
	}

	if err != nil {
		return fmt.Errorf("tokencache: removing %s: %w", s.path, err)
	}

	s.logger.Info("removed token cache",
		slog.String("path", s.path),
	)

	return nil
}
