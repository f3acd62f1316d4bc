package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	ledger, err := OpenLedger(context.Background(), filepath.Join(t.TempDir(), "history.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestLedgerRecordAssignsIDAndTime(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	entry := &Attempt{Rows: 2, BackupPath: "/backups/quotes_x.csv", Outcome: "appended_via_session"}
	require.NoError(t, ledger.Record(ctx, entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.At.IsZero())
}

func TestLedgerRecentNewestFirst(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, outcome := range []string{"failed", "rewritten_direct", "appended_via_session"} {
		require.NoError(t, ledger.Record(ctx, &Attempt{
			At:         base.Add(time.Duration(i) * time.Minute),
			Rows:       i + 1,
			BackupPath: "/backups/quotes.csv",
			Strategies: "session_append:error",
			Outcome:    outcome,
			Detail:     "detail " + outcome,
		}))
	}

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "appended_via_session", entries[0].Outcome)
	assert.Equal(t, "failed", entries[2].Outcome)
	assert.Equal(t, 3, entries[0].Rows)
	assert.Equal(t, "detail failed", entries[2].Detail)
	assert.True(t, entries[0].At.After(entries[1].At))
}

func TestLedgerRecentOrdersSubSecondTimestamps(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	// A whole-second timestamp followed by a later sub-second one within
	// the same second: the later entry must come first.
	whole := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)

	require.NoError(t, ledger.Record(ctx, &Attempt{At: whole, Outcome: "failed"}))
	require.NoError(t, ledger.Record(ctx, &Attempt{At: later, Outcome: "appended_via_session"}))

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "appended_via_session", entries[0].Outcome)
	assert.Equal(t, later, entries[0].At)
	assert.Equal(t, whole, entries[1].At)
}

func TestLedgerRecentLimit(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, ledger.Record(ctx, &Attempt{Outcome: "failed"}))
	}

	entries, err := ledger.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = ledger.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "non-positive limit falls back to the default")
}

func TestLedgerReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	ledger, err := OpenLedger(ctx, path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, ledger.Record(ctx, &Attempt{Outcome: "appended_via_session"}))
	require.NoError(t, ledger.Close())

	ledger, err = OpenLedger(ctx, path, discardLogger())
	require.NoError(t, err)
	defer ledger.Close()

	entries, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "migrations must be idempotent across reopens")
}
