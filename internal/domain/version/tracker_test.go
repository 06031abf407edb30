package version

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := NewTracker(filepath.Join(t.TempDir(), "versions.db"), testLogger())
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTracker_RecordChange(t *testing.T) {
	tr := newTestTracker(t)

	assert.Equal(t, 0, tr.GetCurrentVersion("progress.json"))

	v, ts, err := tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "A1", "completed row")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)

	v, _, err = tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "A2", "")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, tr.GetCurrentVersion("progress.json"))
}

func TestTracker_VersionsAreIndependent(t *testing.T) {
	tr := newTestTracker(t)

	_, _, err := tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "", "")
	require.NoError(t, err)
	_, _, err = tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "", "")
	require.NoError(t, err)
	_, _, err = tr.RecordChange("session.json", "bob", ChangeSessionUpdate, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, tr.GetCurrentVersion("progress.json"))
	assert.Equal(t, 1, tr.GetCurrentVersion("session.json"))
	assert.Equal(t, 0, tr.GetCurrentVersion("never-tracked.json"))
}

func TestTracker_Persistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "versions.db")

	tr := NewTracker(path, testLogger())
	_, _, err := tr.RecordChange("progress.json", "alice", ChangeLockAcquire, "A1", "")
	require.NoError(t, err)
	_, _, err = tr.RecordChange("progress.json", "alice", ChangeLockRelease, "A1", "")
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	reopened := NewTracker(path, testLogger())
	defer reopened.Close()

	assert.Equal(t, 2, reopened.GetCurrentVersion("progress.json"))

	changes := reopened.GetChangesSince("progress.json", 0)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeLockAcquire, changes[0].ChangeKind)
	assert.Equal(t, ChangeLockRelease, changes[1].ChangeKind)
	assert.Equal(t, "A1", changes[0].ResourceID)
}

func TestTracker_GetChangesSince(t *testing.T) {
	tr := newTestTracker(t)

	for i := 0; i < 5; i++ {
		_, _, err := tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "", "")
		require.NoError(t, err)
	}

	changes := tr.GetChangesSince("progress.json", 2)
	require.Len(t, changes, 3)
	for i, info := range changes {
		assert.Equal(t, 3+i, info.Version)
	}

	assert.Empty(t, tr.GetChangesSince("progress.json", 5))
	assert.Empty(t, tr.GetChangesSince("unknown.json", 0))
}

func TestTracker_CheckConflicts(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()

	local := []VersionInfo{{
		Version: 1, Timestamp: now, Author: "alice",
		ChangeKind: ChangeLockAcquire, ResourceID: "A1",
	}}

	t.Run("different kinds within window conflict", func(t *testing.T) {
		remote := []VersionInfo{{
			Version: 1, Timestamp: now.Add(time.Minute), Author: "bob",
			ChangeKind: ChangeProgressUpdate, ResourceID: "A1",
		}}
		conflicts := tr.CheckConflicts("progress.json", local, remote)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "alice", conflicts[0].Local.Author)
		assert.Equal(t, "bob", conflicts[0].Remote.Author)
	})

	t.Run("same kind never conflicts", func(t *testing.T) {
		remote := []VersionInfo{{
			Version: 1, Timestamp: now, Author: "bob",
			ChangeKind: ChangeLockAcquire, ResourceID: "A1",
		}}
		assert.Empty(t, tr.CheckConflicts("progress.json", local, remote))
	})

	t.Run("outside window is missed", func(t *testing.T) {
		remote := []VersionInfo{{
			Version: 1, Timestamp: now.Add(10 * time.Minute), Author: "bob",
			ChangeKind: ChangeProgressUpdate, ResourceID: "A1",
		}}
		assert.Empty(t, tr.CheckConflicts("progress.json", local, remote))
	})

	t.Run("no resource id means no conflict", func(t *testing.T) {
		bare := []VersionInfo{{
			Version: 1, Timestamp: now, Author: "alice",
			ChangeKind: ChangeSyncMarker,
		}}
		remote := []VersionInfo{{
			Version: 1, Timestamp: now, Author: "bob",
			ChangeKind: ChangeProgressUpdate,
		}}
		assert.Empty(t, tr.CheckConflicts("progress.json", bare, remote))
	})
}

func TestTracker_MarkSyncPoint(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.MarkSyncPoint("progress.json", "alice"))

	changes := tr.GetChangesSince("progress.json", 0)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeSyncMarker, changes[0].ChangeKind)
	assert.Empty(t, changes[0].ResourceID)
	assert.Equal(t, 1, tr.GetCurrentVersion("progress.json"))
}

func TestTracker_CorruptStoreFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "versions.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0o644))

	tr := NewTracker(path, testLogger())
	defer tr.Close()

	// Degraded but functional: empty history, version 0, still records.
	assert.Equal(t, 0, tr.GetCurrentVersion("progress.json"))

	v, _, err := tr.RecordChange("progress.json", "alice", ChangeProgressUpdate, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
