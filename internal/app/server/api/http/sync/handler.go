package sync

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	authmw "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/auth"
	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/version"
)

// Versions is the slice of the version tracker the sync endpoints need.
type Versions interface {
	GetCurrentVersion(fileID string) int
	RecordChange(fileID, author string, kind version.ChangeKind, resourceID, description string) (int, time.Time, error)
}

// DocumentStore reads and writes one whole JSON document.
type DocumentStore interface {
	Load() syncdoc.Document
	Save(doc syncdoc.Document) error
}

// StatusProvider reports the hosting node's session state for /status.
type StatusProvider interface {
	Status() Status
}

type Status struct {
	SyncInProgress bool
	LastSync       *time.Time
	IsHost         bool
	ActivePeers    int
}

type Handler struct {
	versions   Versions
	progress   DocumentStore
	session    DocumentStore
	progressID string
	sessionID  string
	status     StatusProvider
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(
	versions Versions,
	progress, session DocumentStore,
	progressID, sessionID string,
	status StatusProvider,
	log *slog.Logger,
	mws huma.Middlewares,
) *Handler {
	return &Handler{
		versions:   versions,
		progress:   progress,
		session:    session,
		progressID: progressID,
		sessionID:  sessionID,
		status:     status,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.statusOp(), h.getStatus)
	huma.Register(api, h.syncStatusOp(), h.getSyncStatus)
	huma.Register(api, h.pullProgressOp(), h.pullProgress)
	huma.Register(api, h.pullSessionOp(), h.pullSession)
	huma.Register(api, h.pushProgressOp(), h.pushProgress)
	huma.Register(api, h.pushSessionOp(), h.pushSession)
}

func (h *Handler) getStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	if _, ok := authmw.GetUsername(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	status := h.status.Status()
	return &statusOutput{
		Body: statusResponse{
			SyncInProgress:  status.SyncInProgress,
			LastSync:        status.LastSync,
			IsHost:          status.IsHost,
			ActivePeers:     status.ActivePeers,
			ProgressVersion: h.versions.GetCurrentVersion(h.progressID),
			SessionVersion:  h.versions.GetCurrentVersion(h.sessionID),
		},
	}, nil
}

func (h *Handler) getSyncStatus(ctx context.Context, _ *struct{}) (*syncStatusOutput, error) {
	if _, ok := authmw.GetUsername(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	status := h.status.Status()
	return &syncStatusOutput{
		Body: syncStatusResponse{
			ProgressVersion: h.versions.GetCurrentVersion(h.progressID),
			SessionVersion:  h.versions.GetCurrentVersion(h.sessionID),
			SyncInProgress:  status.SyncInProgress,
			LastSync:        status.LastSync,
		},
	}, nil
}

func (h *Handler) pullProgress(ctx context.Context, _ *struct{}) (*pullOutput, error) {
	return h.pull(ctx, h.progress, h.progressID)
}

func (h *Handler) pullSession(ctx context.Context, _ *struct{}) (*pullOutput, error) {
	return h.pull(ctx, h.session, h.sessionID)
}

// pull hands out one document whole, together with its current version,
// so a peer resolving a conflict can overwrite its local copy.
func (h *Handler) pull(ctx context.Context, store DocumentStore, fileID string) (*pullOutput, error) {
	if _, ok := authmw.GetUsername(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	return &pullOutput{
		Body: pullResponse{
			Content: store.Load(),
			Version: h.versions.GetCurrentVersion(fileID),
		},
	}, nil
}

func (h *Handler) pushProgress(ctx context.Context, input *pushInput) (*pushOutput, error) {
	return h.push(ctx, input, h.progress, h.progressID,
		version.ChangeProgressUpdate, "Progress sync from remote")
}

func (h *Handler) pushSession(ctx context.Context, input *pushInput) (*pushOutput, error) {
	return h.push(ctx, input, h.session, h.sessionID,
		version.ChangeSessionUpdate, "Session sync from remote")
}

// push replaces one document whole. The write happens before the version
// record: a document that was stored but not recorded surfaces as a
// stale base_version on the next push, which the conflict path already
// handles.
func (h *Handler) push(
	ctx context.Context,
	input *pushInput,
	store DocumentStore,
	fileID string,
	kind version.ChangeKind,
	description string,
) (*pushOutput, error) {
	username, ok := authmw.GetUsername(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	local := h.versions.GetCurrentVersion(fileID)
	if input.Body.BaseVersion != local && !input.Body.Force {
		h.log.Info("rejected stale push",
			slog.String("file", fileID),
			slog.String("author", username),
			slog.Int("base_version", input.Body.BaseVersion),
			slog.Int("local_version", local),
		)
		return &pushOutput{
			Status: http.StatusConflict,
			Body: pushResponse{
				Status:       "conflict",
				LocalVersion: &local,
			},
		}, nil
	}

	if err := store.Save(syncdoc.Document(input.Body.Content)); err != nil {
		h.log.Error("failed to store pushed document",
			slog.String("file", fileID),
			slog.String("error", err.Error()),
		)
		return nil, huma.Error500InternalServerError("Failed to store document")
	}

	newVersion, _, err := h.versions.RecordChange(fileID, username, kind, "", description)
	if err != nil {
		h.log.Error("failed to record pushed document",
			slog.String("file", fileID),
			slog.String("error", err.Error()),
		)
		return nil, huma.Error500InternalServerError("Failed to record version")
	}

	return &pushOutput{
		Status: http.StatusOK,
		Body: pushResponse{
			Status:  "success",
			Version: newVersion,
		},
	}, nil
}
