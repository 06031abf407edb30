package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// Document is an opaque JSON-like document: string keys mapping to nested
// documents, lists or scalars. Lists are leaf values and are compared as
// a whole.
type Document = map[string]any

// Change records one field-level edit. New == nil encodes a deletion.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// FileDiff is a field-level description of how one document snapshot
// differs from another, keyed by dotted path. BaseVersion records which
// snapshot the diff was computed against.
type FileDiff struct {
	FileID      string            `json:"file_id"`
	BaseVersion int               `json:"base_version"`
	Changes     map[string]Change `json:"changes"`
	Timestamp   time.Time         `json:"timestamp"`
	Author      string            `json:"author"`
}

// Versions is the slice of the version tracker the engine needs.
type Versions interface {
	GetCurrentVersion(fileID string) int
}

// Engine computes, applies and reconciles diffs between document
// snapshots, independent of any transport.
type Engine struct {
	versions Versions
	username string
}

func NewEngine(versions Versions, username string) *Engine {
	return &Engine{
		versions: versions,
		username: username,
	}
}

// GenerateDiff flattens both documents to dotted-path leaves and records
// every leaf that was added, changed or deleted between old and new.
func (e *Engine) GenerateDiff(fileID string, oldDoc, newDoc Document, baseVersion int) FileDiff {
	changes := make(map[string]Change)

	flatOld := flatten(oldDoc, "")
	flatNew := flatten(newDoc, "")

	for key, newValue := range flatNew {
		oldValue, existed := flatOld[key]
		if !existed || !reflect.DeepEqual(oldValue, newValue) {
			changes[key] = Change{Old: oldValue, New: newValue}
		}
	}

	for key, oldValue := range flatOld {
		if _, still := flatNew[key]; !still {
			changes[key] = Change{Old: oldValue, New: nil}
		}
	}

	return FileDiff{
		FileID:      fileID,
		BaseVersion: baseVersion,
		Changes:     changes,
		Timestamp:   time.Now(),
		Author:      e.username,
	}
}

// ApplyDiff applies diff on top of content. Unless force is set, a diff
// whose base version is not the file's current version is rejected and
// the content returned unchanged: the optimistic-concurrency guard.
func (e *Engine) ApplyDiff(fileID string, content Document, diff FileDiff, force bool) (bool, Document) {
	if !force && e.versions.GetCurrentVersion(fileID) != diff.BaseVersion {
		return false, content
	}

	result := cloneDocument(content)
	for key, change := range diff.Changes {
		path := strings.Split(key, ".")
		if change.New == nil {
			deleteNested(result, path)
		} else {
			setNested(result, path, change.New)
		}
	}
	return true, result
}

// DetectConflicts returns the dotted-path keys both diffs touch with
// different new values. Convergent edits (identical new values) are not
// conflicts.
func (e *Engine) DetectConflicts(fileID string, localDiff, remoteDiff FileDiff) []string {
	var conflicts []string

	for key, local := range localDiff.Changes {
		remote, overlaps := remoteDiff.Changes[key]
		if !overlaps {
			continue
		}
		if !reflect.DeepEqual(local.New, remote.New) {
			conflicts = append(conflicts, key)
		}
	}

	return conflicts
}

// CalculateFileHash returns a stable content hash for out-of-band
// integrity checks. encoding/json serializes map keys in sorted order,
// which makes the digest canonical.
func (e *Engine) CalculateFileHash(content Document) (string, error) {
	serialized, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(serialized)
	return hex.EncodeToString(digest[:]), nil
}

// flatten recurses through nested documents producing dotted-path keys.
// Lists and scalars are leaves.
func flatten(doc Document, prefix string) map[string]any {
	flat := make(map[string]any)
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(nested, path) {
				flat[k] = v
			}
		} else {
			flat[path] = value
		}
	}
	return flat
}

// setNested writes value at the key path, creating intermediate maps as
// needed. A non-map intermediate is replaced.
func setNested(doc Document, path []string, value any) {
	current := doc
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// deleteNested removes the key path; it is a no-op when the path is
// absent or an intermediate is not a map.
func deleteNested(doc Document, path []string) {
	current := doc
	for _, key := range path[:len(path)-1] {
		value, exists := current[key]
		if !exists {
			return
		}
		next, ok := value.(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, path[len(path)-1])
}

// cloneDocument deep-copies maps so applying a diff never mutates the
// caller's snapshot. Non-map values are shared; diffs replace them
// wholesale rather than editing in place.
func cloneDocument(doc Document) Document {
	clone := make(Document, len(doc))
	for key, value := range doc {
		if nested, ok := value.(map[string]any); ok {
			clone[key] = cloneDocument(nested)
		} else {
			clone[key] = value
		}
	}
	return clone
}
