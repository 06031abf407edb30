package chunk

import (
	"context"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	authmw "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/auth"
	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
)

// ProgressReader loads the progress document the projection is built
// from.
type ProgressReader interface {
	Load() syncdoc.Document
}

type Handler struct {
	progress   ProgressReader
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(progress ProgressReader, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		progress:   progress,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getOp(), h.get)
}

func (h *Handler) get(ctx context.Context, input *getInput) (*getOutput, error) {
	if _, ok := authmw.GetUsername(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	doc := h.progress.Load()

	return &getOutput{
		Body: getResponse{
			ResourceID:    input.ID,
			CompletedRows: completedRows(doc, input.ID),
			LastModified:  lastModified(doc, input.ID),
		},
	}, nil
}

// completedRows projects the chunk's row list out of the document. An
// unknown chunk yields an empty list, matching the progress tracker's
// own read semantics.
func completedRows(doc syncdoc.Document, resourceID string) []int {
	rows := []int{}

	byChunk, ok := doc["completed_rows"].(map[string]any)
	if !ok {
		return rows
	}
	list, ok := byChunk[resourceID].([]any)
	if !ok {
		return rows
	}

	for _, v := range list {
		switch n := v.(type) {
		case float64:
			rows = append(rows, int(n))
		case int:
			rows = append(rows, n)
		}
	}
	sort.Ints(rows)
	return rows
}

func lastModified(doc syncdoc.Document, resourceID string) *string {
	byChunk, ok := doc["last_modified"].(map[string]any)
	if !ok {
		return nil
	}
	ts, ok := byChunk[resourceID].(string)
	if !ok {
		return nil
	}
	return &ts
}
