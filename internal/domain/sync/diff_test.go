package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVersions stands in for the tracker in engine tests.
type stubVersions map[string]int

func (s stubVersions) GetCurrentVersion(fileID string) int { return s[fileID] }

func oldContent() Document {
	return Document{
		"completed_rows": map[string]any{
			"A1": []any{0, 1, 2},
			"B1": []any{0, 1},
		},
		"completed_chunks": []any{"A1"},
		"last_modified": map[string]any{
			"A1": "2024-01-01T00:00:00",
			"B1": "2024-01-01T00:00:00",
		},
	}
}

func newContent() Document {
	return Document{
		"completed_rows": map[string]any{
			"A1": []any{0, 1, 2, 3},
			"B1": []any{0, 1},
			"C1": []any{0},
		},
		"completed_chunks": []any{"A1"},
		"last_modified": map[string]any{
			"A1": "2024-01-02T00:00:00",
			"B1": "2024-01-01T00:00:00",
			"C1": "2024-01-02T00:00:00",
		},
	}
}

func TestEngine_GenerateDiff(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	diff := e.GenerateDiff("progress.json", oldContent(), newContent(), 0)

	assert.Equal(t, "progress.json", diff.FileID)
	assert.Equal(t, 0, diff.BaseVersion)
	assert.Equal(t, "test_user", diff.Author)

	require.Contains(t, diff.Changes, "completed_rows.A1")
	assert.Equal(t, []any{0, 1, 2}, diff.Changes["completed_rows.A1"].Old)
	assert.Equal(t, []any{0, 1, 2, 3}, diff.Changes["completed_rows.A1"].New)

	// Added leaf: no old value.
	require.Contains(t, diff.Changes, "completed_rows.C1")
	assert.Nil(t, diff.Changes["completed_rows.C1"].Old)

	// Unchanged leaves stay out of the diff.
	assert.NotContains(t, diff.Changes, "completed_rows.B1")
	assert.NotContains(t, diff.Changes, "last_modified.B1")
}

func TestEngine_GenerateDiff_Deletion(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	old := Document{"completed_rows": map[string]any{"A1": []any{0}, "B1": []any{1}}}
	updated := Document{"completed_rows": map[string]any{"A1": []any{0}}}

	diff := e.GenerateDiff("progress.json", old, updated, 0)

	require.Contains(t, diff.Changes, "completed_rows.B1")
	assert.Equal(t, []any{1}, diff.Changes["completed_rows.B1"].Old)
	assert.Nil(t, diff.Changes["completed_rows.B1"].New)
}

func TestEngine_ApplyDiff(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	diff := e.GenerateDiff("progress.json", oldContent(), newContent(), 0)
	ok, result := e.ApplyDiff("progress.json", oldContent(), diff, false)

	require.True(t, ok)
	rows := result["completed_rows"].(map[string]any)
	assert.Equal(t, []any{0, 1, 2, 3}, rows["A1"])
	assert.Contains(t, rows, "C1")
	assert.Equal(t, "2024-01-02T00:00:00", result["last_modified"].(map[string]any)["A1"])
}

func TestEngine_ApplyDiff_RoundTrip(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	diff := e.GenerateDiff("progress.json", oldContent(), newContent(), 0)
	ok, result := e.ApplyDiff("progress.json", oldContent(), diff, true)

	require.True(t, ok)
	assert.Equal(t, newContent(), result)
}

func TestEngine_ApplyDiff_VersionMismatch(t *testing.T) {
	versions := stubVersions{"progress.json": 1}
	e := NewEngine(versions, "test_user")

	diff := e.GenerateDiff("progress.json", oldContent(), newContent(), 0)

	ok, result := e.ApplyDiff("progress.json", oldContent(), diff, false)
	assert.False(t, ok)
	assert.Equal(t, oldContent(), result)

	// force bypasses the optimistic guard
	ok, _ = e.ApplyDiff("progress.json", oldContent(), diff, true)
	assert.True(t, ok)
}

func TestEngine_ApplyDiff_DeletionEdgeCases(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	diff := FileDiff{
		FileID: "progress.json",
		Changes: map[string]Change{
			"missing.path.entirely": {Old: "x", New: nil},
			"completed_chunks.sub":  {Old: "y", New: nil}, // intermediate is a list, not a map
		},
	}

	ok, result := e.ApplyDiff("progress.json", oldContent(), diff, true)
	require.True(t, ok)
	assert.Equal(t, oldContent(), result)
}

func TestEngine_DetectConflicts(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	base := oldContent()

	local := cloneDocument(base)
	local["completed_rows"].(map[string]any)["A1"] = []any{0, 1, 2, 3}

	remote := cloneDocument(base)
	remote["completed_rows"].(map[string]any)["A1"] = []any{0, 1, 2, 4}

	localDiff := e.GenerateDiff("progress.json", base, local, 0)
	remoteDiff := e.GenerateDiff("progress.json", base, remote, 0)

	conflicts := e.DetectConflicts("progress.json", localDiff, remoteDiff)
	assert.Equal(t, []string{"completed_rows.A1"}, conflicts)
}

func TestEngine_DetectConflicts_ConvergentEdits(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	base := oldContent()

	local := cloneDocument(base)
	local["completed_rows"].(map[string]any)["A1"] = []any{0, 1, 2, 4}

	remote := cloneDocument(base)
	remote["completed_rows"].(map[string]any)["A1"] = []any{0, 1, 2, 4}

	localDiff := e.GenerateDiff("progress.json", base, local, 0)
	remoteDiff := e.GenerateDiff("progress.json", base, remote, 0)

	// Identical new values on both sides are not a conflict.
	assert.Empty(t, e.DetectConflicts("progress.json", localDiff, remoteDiff))
}

func TestEngine_CalculateFileHash(t *testing.T) {
	e := NewEngine(stubVersions{}, "test_user")

	h1, err := e.CalculateFileHash(oldContent())
	require.NoError(t, err)
	h2, err := e.CalculateFileHash(oldContent())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := e.CalculateFileHash(newContent())
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
