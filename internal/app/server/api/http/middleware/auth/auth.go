package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// TokenValidator resolves a bearer token to the username it was minted
// for.
type TokenValidator interface {
	Validate(token string) (string, bool)
}

type Auth struct {
	tokens TokenValidator
	log    *slog.Logger
}

func New(tokens TokenValidator, log *slog.Logger) *Auth {
	return &Auth{
		tokens: tokens,
		log:    log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const usernameKey contextKey = "username"

// Middleware rejects requests without a valid bearer token and stores
// the authenticated username in the request context.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.reject(ctx, "Authentication required")
			return
		}

		username, ok := a.tokens.Validate(token)
		if !ok {
			a.reject(ctx, "Invalid authentication token")
			return
		}

		next(huma.WithContext(ctx, WithUsername(ctx.Context(), username)))
	}
}

func (a *Auth) reject(ctx huma.Context, message string) {
	a.log.Debug("rejected request",
		slog.String("path", ctx.URL().Path),
		slog.String("reason", message),
	)

	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": message,
	}); err != nil {
		a.log.Error("failed to write auth error", slog.String("error", err.Error()))
	}
}

// WithUsername stores the authenticated username in ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// GetUsername extracts the authenticated username set by Middleware.
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}
