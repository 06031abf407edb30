package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Session status snapshot",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) syncStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/sync/status",
		Summary:     "Document versions and sync state",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pullProgressOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-progress-get",
		Method:      http.MethodGet,
		Path:        "/sync/progress",
		Summary:     "Fetch the progress document",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pullSessionOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-session-get",
		Method:      http.MethodGet,
		Path:        "/sync/session",
		Summary:     "Fetch the session document",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pushProgressOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-progress",
		Method:      http.MethodPost,
		Path:        "/sync/progress",
		Summary:     "Push the progress document",
		Description: "Replaces the host's progress document. Rejected with 409 when base_version is stale, unless force is set.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pushSessionOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-session",
		Method:      http.MethodPost,
		Path:        "/sync/session",
		Summary:     "Push the session document",
		Description: "Replaces the host's session document. Rejected with 409 when base_version is stale, unless force is set.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
