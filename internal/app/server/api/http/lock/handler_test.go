package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	authmw "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/auth"
	lockdomain "github.com/voidfemme/nbt-mapart-helper/internal/domain/lock"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/version"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestHandler(t *testing.T) (*Handler, *version.Tracker) {
	t.Helper()

	dir := t.TempDir()
	sessionID := filepath.Join(dir, "session.json")
	tracker := version.NewTracker(filepath.Join(dir, "versions.db"), testLogger())
	t.Cleanup(func() { tracker.Close() })

	locks := lockdomain.NewManager("host", sessionID, testLogger())
	handler := NewHandler(locks, tracker, sessionID, testLogger(), huma.Middlewares{})
	return handler, tracker
}

func authedCtx(username string) context.Context {
	return authmw.WithUsername(context.Background(), username)
}

func TestHandler_Acquire(t *testing.T) {
	handler, tracker := newTestHandler(t)

	output, err := handler.acquire(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	assert.True(t, output.Body.Locked)
	assert.Equal(t, "success", output.Body.Status)
	assert.Equal(t, "A1", output.Body.ResourceID)

	// The lock is attributed to the requester and recorded in history.
	info := handler.locks.GetLockInfo("A1")
	require.NotNil(t, info)
	assert.Equal(t, "alice", info.Username)

	changes := tracker.GetChangesSince(handler.sessionID, 0)
	require.Len(t, changes, 1)
	assert.Equal(t, version.ChangeLockAcquire, changes[0].ChangeKind)
	assert.Equal(t, "A1", changes[0].ResourceID)
	assert.Equal(t, "alice", changes[0].Author)
}

func TestHandler_AcquireHeldByOther(t *testing.T) {
	handler, tracker := newTestHandler(t)

	_, err := handler.acquire(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	output, err := handler.acquire(authedCtx("bob"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	assert.False(t, output.Body.Locked)
	assert.Equal(t, "failed", output.Body.Status)

	// Denied acquisitions leave no history entry.
	assert.Len(t, tracker.GetChangesSince(handler.sessionID, 0), 1)
}

func TestHandler_Release(t *testing.T) {
	handler, tracker := newTestHandler(t)

	_, err := handler.acquire(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	output, err := handler.release(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	assert.True(t, output.Body.Released)
	assert.Nil(t, handler.locks.GetLockInfo("A1"))

	changes := tracker.GetChangesSince(handler.sessionID, 0)
	require.Len(t, changes, 2)
	assert.Equal(t, version.ChangeLockRelease, changes[1].ChangeKind)
}

func TestHandler_ReleaseNotOwner(t *testing.T) {
	handler, _ := newTestHandler(t)

	_, err := handler.acquire(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	_, err = handler.release(authedCtx("bob"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	assert.Error(t, err)

	// The lock survives the rejected release.
	info := handler.locks.GetLockInfo("A1")
	require.NotNil(t, info)
	assert.Equal(t, "alice", info.Username)
}

func TestHandler_ReleaseUnheld(t *testing.T) {
	handler, _ := newTestHandler(t)

	output, err := handler.release(authedCtx("alice"), &lockInput{
		Body: lockRequest{ResourceID: "A1"},
	})
	require.NoError(t, err)

	assert.False(t, output.Body.Released)
	assert.Equal(t, "failed", output.Body.Status)
}
