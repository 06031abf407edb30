package version

import "time"

// ChangeKind labels an entry in a file's version history.
type ChangeKind string

const (
	ChangeProgressUpdate ChangeKind = "progress_update"
	ChangeSessionUpdate  ChangeKind = "session_update"
	ChangeLockAcquire    ChangeKind = "lock_acquire"
	ChangeLockRelease    ChangeKind = "lock_release"
	ChangeSyncMarker     ChangeKind = "sync_marker"
)

// VersionInfo is one entry of a file's append-only change history.
type VersionInfo struct {
	Version     int        `json:"version"`
	Timestamp   time.Time  `json:"timestamp"`
	Author      string     `json:"author"`
	ChangeKind  ChangeKind `json:"change_kind"`
	ResourceID  string     `json:"resource_id,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ConflictPair is a local/remote change pair flagged by CheckConflicts.
type ConflictPair struct {
	Local  VersionInfo `json:"local"`
	Remote VersionInfo `json:"remote"`
}

// conflictWindow is the temporal-proximity window for CheckConflicts.
// Two differently-typed changes to the same chunk inside this window are
// treated as potentially conflicting. This is a heuristic, not a causal
// test: edits outside the window go undetected and unrelated edits inside
// it can be flagged.
const conflictWindow = 300 * time.Second
