package auth

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) authenticateOp() huma.Operation {
	return huma.Operation{
		OperationID: "auth",
		Method:      http.MethodPost,
		Path:        "/auth",
		Summary:     "Obtain a session token",
		Description: "Mints a bearer token for the given username. When the host was started with a shared secret, the request must carry it.",
		Tags:        []string{"auth"},
		Middlewares: h.middleware,
	}
}
