package chunk

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) getOp() huma.Operation {
	return huma.Operation{
		OperationID: "chunks-get",
		Method:      http.MethodGet,
		Path:        "/chunks/{id}",
		Summary:     "Read one chunk's progress",
		Tags:        []string{"chunks"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
