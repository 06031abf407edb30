package sync

import "time"

type statusOutput struct {
	Body statusResponse
}

type statusResponse struct {
	SyncInProgress  bool       `json:"sync_in_progress"`
	LastSync        *time.Time `json:"last_sync"`
	IsHost          bool       `json:"is_host"`
	ActivePeers     int        `json:"active_peers"`
	ProgressVersion int        `json:"progress_version"`
	SessionVersion  int        `json:"session_version"`
}

type syncStatusOutput struct {
	Body syncStatusResponse
}

type syncStatusResponse struct {
	ProgressVersion int        `json:"progress_version"`
	SessionVersion  int        `json:"session_version"`
	SyncInProgress  bool       `json:"sync_in_progress"`
	LastSync        *time.Time `json:"last_sync"`
}

type pushInput struct {
	Body pushRequest
}

type pushRequest struct {
	Content     map[string]any `json:"content" doc:"Whole document to store"`
	BaseVersion int            `json:"base_version" doc:"Version the content was derived from"`
	Force       bool           `json:"force,omitempty" doc:"Apply even when base_version is stale"`
}

type pullOutput struct {
	Body pullResponse
}

type pullResponse struct {
	Content map[string]any `json:"content"`
	Version int            `json:"version"`
}

type pushOutput struct {
	Status int
	Body   pushResponse
}

type pushResponse struct {
	Status       string `json:"status"`
	Version      int    `json:"version,omitempty"`
	LocalVersion *int   `json:"local_version,omitempty"`
}
