package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := NewHTTPClient("127.0.0.1", 0, testLogger())
	c.baseURL = ts.URL
	return c
}

func TestHTTPClient_Authenticate(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth", r.URL.Path)

		var req struct {
			Username string `json:"username"`
			Secret   string `json:"secret"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "hunter2", req.Secret)

		json.NewEncoder(w).Encode(map[string]string{"token": "tok123", "username": "alice"})
	}))

	token, err := c.Authenticate(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, "tok123", token)
	assert.Equal(t, "tok123", c.Token())
}

func TestHTTPClient_AuthenticateRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid shared secret"})
	}))

	_, err := c.Authenticate(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid shared secret")
	assert.Empty(t, c.Token())
}

func TestHTTPClient_PushProgress(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/progress", r.URL.Path)
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))

		var req struct {
			Content     map[string]any `json:"content"`
			BaseVersion int            `json:"base_version"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.BaseVersion)

		json.NewEncoder(w).Encode(map[string]any{"status": "success", "version": 3})
	}))
	c.SetToken("tok123")

	result, err := c.PushProgress(context.Background(), syncdoc.Document{"completed_chunks": []any{}}, 2, false)
	require.NoError(t, err)

	assert.False(t, result.Conflict)
	assert.Equal(t, 3, result.Version)
}

func TestHTTPClient_PushProgressConflict(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"status": "conflict", "local_version": 7})
	}))

	result, err := c.PushProgress(context.Background(), syncdoc.Document{}, 2, false)
	require.NoError(t, err)

	assert.True(t, result.Conflict)
	assert.Equal(t, 7, result.LocalVersion)
}

func TestHTTPClient_PullProgress(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/sync/progress", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"completed_chunks": []any{"A1"}},
			"version": 5,
		})
	}))

	content, ver, err := c.PullProgress(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, ver)
	assert.Equal(t, []any{"A1"}, content["completed_chunks"])
}

func TestHTTPClient_Locks(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResourceID string `json:"resource_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "A1", req.ResourceID)

		switch r.URL.Path {
		case "/lock/acquire":
			json.NewEncoder(w).Encode(map[string]any{"status": "success", "resource_id": "A1", "locked": true})
		case "/lock/release":
			json.NewEncoder(w).Encode(map[string]any{"status": "failed", "resource_id": "A1", "released": false})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	locked, err := c.AcquireLock(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, locked)

	released, err := c.ReleaseLock(context.Background(), "A1")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestHTTPClient_GetChunk(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chunks/B2", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"resource_id":    "B2",
			"completed_rows": []int{0, 1},
			"last_modified":  "2026-08-27T10:00:00",
		})
	}))

	chunk, err := c.GetChunk(context.Background(), "B2")
	require.NoError(t, err)

	assert.Equal(t, "B2", chunk.ResourceID)
	assert.Equal(t, []int{0, 1}, chunk.CompletedRows)
	require.NotNil(t, chunk.LastModified)
}
