package version

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Tracker is the single source of truth for what version each file is at
// and who changed it. History is append-only; versions of different files
// are independent.
//
// A broken or unreadable store never stops a node from working: the
// tracker degrades to empty in-memory history and logs a warning.
type Tracker struct {
	log *slog.Logger

	mu       sync.Mutex
	db       *sql.DB // nil when running without durable storage
	versions map[string]int
	history  map[string][]VersionInfo
}

// NewTracker opens the version store at path and loads its history.
func NewTracker(path string, log *slog.Logger) *Tracker {
	t := &Tracker{
		log:      log.With(slog.String("component", "version_tracker")),
		versions: make(map[string]int),
		history:  make(map[string][]VersionInfo),
	}

	db, err := openStore(path)
	if err != nil {
		t.log.Warn("version store unavailable, using empty history",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return t
	}

	versions, history, err := loadHistory(db)
	if err != nil {
		t.log.Warn("version store corrupted, using empty history",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		db.Close()
		return t
	}

	t.db = db
	t.versions = versions
	t.history = history
	return t
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

// RecordChange increments the file's version, appends a history entry and
// persists both atomically. The returned version and timestamp are only
// valid when err is nil.
func (t *Tracker) RecordChange(fileID, author string, kind ChangeKind, resourceID, description string) (int, time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := VersionInfo{
		Version:     t.versions[fileID] + 1,
		Timestamp:   time.Now(),
		Author:      author,
		ChangeKind:  kind,
		ResourceID:  resourceID,
		Description: description,
	}

	if t.db != nil {
		if err := persistChange(t.db, fileID, info); err != nil {
			return 0, time.Time{}, fmt.Errorf("persist change for %s: %w", fileID, err)
		}
	}

	t.versions[fileID] = info.Version
	t.history[fileID] = append(t.history[fileID], info)

	return info.Version, info.Timestamp, nil
}

// GetCurrentVersion returns 0 for files that were never recorded;
// untracked is not an error.
func (t *Tracker) GetCurrentVersion(fileID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.versions[fileID]
}

// GetChangesSince returns the history entries with version > sinceVersion,
// in increasing version order.
func (t *Tracker) GetChangesSince(fileID string, sinceVersion int) []VersionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []VersionInfo
	for _, info := range t.history[fileID] {
		if info.Version > sinceVersion {
			changes = append(changes, info)
		}
	}
	return changes
}

// CheckConflicts pairs up local and remote changes that target the same
// chunk with different change kinds inside the proximity window. See the
// conflictWindow note: this is approximate by design.
func (t *Tracker) CheckConflicts(fileID string, localChanges, remoteChanges []VersionInfo) []ConflictPair {
	var conflicts []ConflictPair

	for _, local := range localChanges {
		for _, remote := range remoteChanges {
			if local.ResourceID == "" || local.ResourceID != remote.ResourceID {
				continue
			}
			if local.ChangeKind == remote.ChangeKind {
				continue
			}

			gap := local.Timestamp.Sub(remote.Timestamp)
			if gap < 0 {
				gap = -gap
			}
			if gap < conflictWindow {
				conflicts = append(conflicts, ConflictPair{Local: local, Remote: remote})
			}
		}
	}

	return conflicts
}

// MarkSyncPoint stamps a sync_marker entry, used for audit only.
func (t *Tracker) MarkSyncPoint(fileID, author string) error {
	_, _, err := t.RecordChange(fileID, author, ChangeSyncMarker, "", "Synchronization point")
	return err
}
