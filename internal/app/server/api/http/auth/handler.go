package auth

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Tokens is the server-side token registry.
type Tokens interface {
	CreateToken(username string) (string, error)
	RequiresSecret() bool
	VerifySecret(secret string) bool
}

type Handler struct {
	tokens     Tokens
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(tokens Tokens, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		tokens:     tokens,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.authenticateOp(), h.authenticate)
}

func (h *Handler) authenticate(ctx context.Context, input *authenticateInput) (*authenticateOutput, error) {
	if !h.tokens.VerifySecret(input.Body.Secret) {
		h.log.Warn("auth with wrong shared secret",
			slog.String("username", input.Body.Username))
		return nil, huma.Error401Unauthorized("Invalid shared secret")
	}

	token, err := h.tokens.CreateToken(input.Body.Username)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create token")
	}

	h.log.Info("user authenticated", slog.String("username", input.Body.Username))
	return &authenticateOutput{
		Body: authenticateResponse{
			Token:    token,
			Username: input.Body.Username,
		},
	}, nil
}
