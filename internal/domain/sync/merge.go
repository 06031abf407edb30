package sync

import "strings"

// Resolution choices for a conflicting key.
const (
	ResolveLocal  = "local"
	ResolveRemote = "remote"
)

// MergeChanges merges local and remote diffs on top of base content.
// Non-conflicting changes from both sides are applied; each conflicting
// key is decided by resolution[key] ("local" or "remote"). When conflicts
// exist and a key has no resolution, the merge fails and base is returned
// untouched.
func (e *Engine) MergeChanges(fileID string, base Document, localDiff, remoteDiff FileDiff, resolution map[string]string) (bool, Document) {
	conflicts := e.DetectConflicts(fileID, localDiff, remoteDiff)
	if len(conflicts) > 0 && resolution == nil {
		return false, base
	}

	conflicting := make(map[string]struct{}, len(conflicts))
	for _, key := range conflicts {
		conflicting[key] = struct{}{}
	}

	apply := make(map[string]any)

	for key, change := range localDiff.Changes {
		if _, conflicted := conflicting[key]; !conflicted {
			apply[key] = change.New
		}
	}
	for key, change := range remoteDiff.Changes {
		if _, conflicted := conflicting[key]; !conflicted {
			apply[key] = change.New
		}
	}

	for _, key := range conflicts {
		switch resolution[key] {
		case ResolveLocal:
			apply[key] = localDiff.Changes[key].New
		case ResolveRemote:
			apply[key] = remoteDiff.Changes[key].New
		default:
			// A conflict without a decision fails the whole merge.
			return false, base
		}
	}

	result := cloneDocument(base)
	for key, value := range apply {
		path := strings.Split(key, ".")
		if value == nil {
			deleteNested(result, path)
		} else {
			setNested(result, path, value)
		}
	}

	return true, result
}
