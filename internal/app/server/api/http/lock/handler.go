package lock

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	authmw "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/auth"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/lock"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/version"
)

// Locks is the slice of the lock manager the endpoints need. Operations
// carry the authenticated user explicitly so locks taken over HTTP are
// attributed to the requester, not to the host.
type Locks interface {
	AcquireAs(username, resourceID string) bool
	ReleaseAs(username, resourceID string) bool
	GetLockInfo(resourceID string) *lock.LockInfo
}

type Versions interface {
	RecordChange(fileID, author string, kind version.ChangeKind, resourceID, description string) (int, time.Time, error)
}

type Handler struct {
	locks      Locks
	versions   Versions
	sessionID  string
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(locks Locks, versions Versions, sessionID string, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		locks:      locks,
		versions:   versions,
		sessionID:  sessionID,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.acquireOp(), h.acquire)
	huma.Register(api, h.releaseOp(), h.release)
}

func (h *Handler) acquire(ctx context.Context, input *lockInput) (*acquireOutput, error) {
	username, ok := authmw.GetUsername(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resourceID := input.Body.ResourceID
	locked := h.locks.AcquireAs(username, resourceID)

	if locked {
		if _, _, err := h.versions.RecordChange(
			h.sessionID, username, version.ChangeLockAcquire, resourceID, "",
		); err != nil {
			h.log.Warn("failed to record lock acquisition",
				slog.String("resource", resourceID),
				slog.String("error", err.Error()),
			)
		}
	}

	return &acquireOutput{
		Body: acquireResponse{
			Status:     statusWord(locked),
			ResourceID: resourceID,
			Locked:     locked,
		},
	}, nil
}

func (h *Handler) release(ctx context.Context, input *lockInput) (*releaseOutput, error) {
	username, ok := authmw.GetUsername(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resourceID := input.Body.ResourceID

	if info := h.locks.GetLockInfo(resourceID); info != nil && info.Username != username {
		return nil, huma.Error403Forbidden("Lock is held by another user")
	}

	released := h.locks.ReleaseAs(username, resourceID)

	if released {
		if _, _, err := h.versions.RecordChange(
			h.sessionID, username, version.ChangeLockRelease, resourceID, "",
		); err != nil {
			h.log.Warn("failed to record lock release",
				slog.String("resource", resourceID),
				slog.String("error", err.Error()),
			)
		}
	}

	return &releaseOutput{
		Body: releaseResponse{
			Status:     statusWord(released),
			ResourceID: resourceID,
			Released:   released,
		},
	}, nil
}

func statusWord(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
