package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
)

// HTTPClient talks to one host's sync server. Every call carries a
// bounded timeout through its context plus the client-level cap below.
type HTTPClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(host string, port int, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:       log.With(slog.String("component", "http_client")),
		baseURL:   fmt.Sprintf("http://%s:%d", host, port),
		userAgent: "nbt-mapart-helper/1.0",
	}
}

// SetToken installs the bearer token for authenticated calls.
func (h *HTTPClient) SetToken(token string) {
	h.token = token
}

func (h *HTTPClient) Token() string {
	return h.token
}

// SyncStatus mirrors the server's GET /sync/status body.
type SyncStatus struct {
	ProgressVersion int        `json:"progress_version"`
	SessionVersion  int        `json:"session_version"`
	SyncInProgress  bool       `json:"sync_in_progress"`
	LastSync        *time.Time `json:"last_sync"`
}

// ServerStatus mirrors the server's GET /status body.
type ServerStatus struct {
	SyncInProgress  bool       `json:"sync_in_progress"`
	LastSync        *time.Time `json:"last_sync"`
	IsHost          bool       `json:"is_host"`
	ActivePeers     int        `json:"active_peers"`
	ProgressVersion int        `json:"progress_version"`
	SessionVersion  int        `json:"session_version"`
}

// PushResult is the outcome of a document push. A conflict is an
// expected answer, not an error.
type PushResult struct {
	Conflict     bool
	Version      int
	LocalVersion int
}

// ChunkData mirrors the server's GET /chunks/{id} body.
type ChunkData struct {
	ResourceID    string  `json:"resource_id"`
	CompletedRows []int   `json:"completed_rows"`
	LastModified  *string `json:"last_modified"`
}

// Authenticate mints a session token and installs it on the client.
func (h *HTTPClient) Authenticate(ctx context.Context, username, secret string) (string, error) {
	req := struct {
		Username string `json:"username"`
		Secret   string `json:"secret,omitempty"`
	}{
		Username: username,
		Secret:   secret,
	}

	resp, err := h.doRequest(ctx, http.MethodPost, "/auth", req)
	if err != nil {
		return "", err
	}

	var authResp struct {
		Token string `json:"token"`
	}
	if err := h.parseResponse(resp, &authResp); err != nil {
		return "", err
	}

	h.SetToken(authResp.Token)
	return authResp.Token, nil
}

func (h *HTTPClient) GetStatus(ctx context.Context) (*ServerStatus, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}

	var status ServerStatus
	if err := h.parseResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (h *HTTPClient) GetSyncStatus(ctx context.Context) (*SyncStatus, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/sync/status", nil)
	if err != nil {
		return nil, err
	}

	var status SyncStatus
	if err := h.parseResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PushProgress sends the whole progress document.
func (h *HTTPClient) PushProgress(ctx context.Context, content syncdoc.Document, baseVersion int, force bool) (*PushResult, error) {
	return h.pushDocument(ctx, "/sync/progress", content, baseVersion, force)
}

// PushSession sends the whole session document.
func (h *HTTPClient) PushSession(ctx context.Context, content syncdoc.Document, baseVersion int, force bool) (*PushResult, error) {
	return h.pushDocument(ctx, "/sync/session", content, baseVersion, force)
}

func (h *HTTPClient) pushDocument(ctx context.Context, path string, content syncdoc.Document, baseVersion int, force bool) (*PushResult, error) {
	req := struct {
		Content     syncdoc.Document `json:"content"`
		BaseVersion int              `json:"base_version"`
		Force       bool             `json:"force,omitempty"`
	}{
		Content:     content,
		BaseVersion: baseVersion,
		Force:       force,
	}

	resp, err := h.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		defer resp.Body.Close()

		var conflictResp struct {
			LocalVersion int `json:"local_version"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&conflictResp); err != nil {
			return nil, fmt.Errorf("parse conflict response: %w", err)
		}

		return &PushResult{
			Conflict:     true,
			LocalVersion: conflictResp.LocalVersion,
		}, nil
	}

	var pushResp struct {
		Version int `json:"version"`
	}
	if err := h.parseResponse(resp, &pushResp); err != nil {
		return nil, err
	}
	return &PushResult{Version: pushResp.Version}, nil
}

// PullProgress fetches the host's progress document and its version.
func (h *HTTPClient) PullProgress(ctx context.Context) (syncdoc.Document, int, error) {
	return h.pullDocument(ctx, "/sync/progress")
}

// PullSession fetches the host's session document and its version.
func (h *HTTPClient) PullSession(ctx context.Context) (syncdoc.Document, int, error) {
	return h.pullDocument(ctx, "/sync/session")
}

func (h *HTTPClient) pullDocument(ctx context.Context, path string) (syncdoc.Document, int, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}

	var pullResp struct {
		Content syncdoc.Document `json:"content"`
		Version int              `json:"version"`
	}
	if err := h.parseResponse(resp, &pullResp); err != nil {
		return nil, 0, err
	}
	return pullResp.Content, pullResp.Version, nil
}

func (h *HTTPClient) GetChunk(ctx context.Context, resourceID string) (*ChunkData, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/chunks/"+resourceID, nil)
	if err != nil {
		return nil, err
	}

	var chunk ChunkData
	if err := h.parseResponse(resp, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// AcquireLock takes the chunk lock on the host. A denied lock is a
// plain false, not an error.
func (h *HTTPClient) AcquireLock(ctx context.Context, resourceID string) (bool, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/lock/acquire", lockRequest{ResourceID: resourceID})
	if err != nil {
		return false, err
	}

	var lockResp struct {
		Locked bool `json:"locked"`
	}
	if err := h.parseResponse(resp, &lockResp); err != nil {
		return false, err
	}
	return lockResp.Locked, nil
}

// ReleaseLock drops the chunk lock on the host.
func (h *HTTPClient) ReleaseLock(ctx context.Context, resourceID string) (bool, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/lock/release", lockRequest{ResourceID: resourceID})
	if err != nil {
		return false, err
	}

	var lockResp struct {
		Released bool `json:"released"`
	}
	if err := h.parseResponse(resp, &lockResp); err != nil {
		return false, err
	}
	return lockResp.Released, nil
}

type lockRequest struct {
	ResourceID string `json:"resource_id"`
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("sending request",
		slog.String("method", method),
		slog.String("url", req.URL.String()),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	h.log.Debug("received response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
