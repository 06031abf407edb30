package lock

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) acquireOp() huma.Operation {
	return huma.Operation{
		OperationID: "lock-acquire",
		Method:      http.MethodPost,
		Path:        "/lock/acquire",
		Summary:     "Acquire a chunk lock",
		Tags:        []string{"locks"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) releaseOp() huma.Operation {
	return huma.Operation{
		OperationID: "lock-release",
		Method:      http.MethodPost,
		Path:        "/lock/release",
		Summary:     "Release a chunk lock",
		Description: "Releasing a lock held by another user is rejected with 403.",
		Tags:        []string{"locks"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
