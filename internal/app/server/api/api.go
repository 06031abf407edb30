//POST /auth           # Mint session token (public, LAN-only)
//GET  /status         # Session status snapshot (auth)
//GET  /sync/status    # Document versions (auth)
//GET  /sync/progress  # Pull progress document (auth)
//GET  /sync/session   # Pull session document (auth)
//POST /sync/progress  # Push progress document (auth)
//POST /sync/session   # Push session document (auth)
//POST /lock/acquire   # Acquire chunk lock (auth)
//POST /lock/release   # Release chunk lock (auth)
//GET  /chunks/{id}    # Read-only chunk projection (auth)

package api

import (
	authAPI "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/auth"
	chunkAPI "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/chunk"
	lockAPI "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/lock"
	"github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware"
	authMW "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/auth"
	"github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/localnet"
	loggerMW "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/middleware/logger"
	syncAPI "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/sync"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/auth"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/document"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/lock"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/version"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

// Deps are the shared components one hosted session exposes over HTTP.
type Deps struct {
	Tokens   *auth.Service
	Versions *version.Tracker
	Progress *document.Store
	Session  *document.Store
	Locks    *lock.Manager
	Status   syncAPI.StatusProvider

	ProgressID string
	SessionID  string
}

type Handlers struct {
	Auth  *authAPI.Handler
	Sync  *syncAPI.Handler
	Lock  *lockAPI.Handler
	Chunk *chunkAPI.Handler
}

// New builds a *chi.Mux with every operation registered through huma.
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("NBT Mapart Helper Sync API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Auth.SetupRoutes(API)
	h.Sync.SetupRoutes(API)
	h.Lock.SetupRoutes(API)
	h.Chunk.SetupRoutes(API)

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	localnetMW := localnet.New(log)
	sessionMW := authMW.New(deps.Tokens, log)
	requestMW := loggerMW.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(localnetMW.Middleware())
	middlewares.Add(requestMW.Middleware())
	authHandler := authAPI.NewHandler(deps.Tokens, log, middlewares.GetAllAndClear())

	middlewares.Add(localnetMW.Middleware())
	middlewares.Add(sessionMW.Middleware())
	middlewares.Add(requestMW.Middleware())
	syncHandler := syncAPI.NewHandler(
		deps.Versions,
		deps.Progress, deps.Session,
		deps.ProgressID, deps.SessionID,
		deps.Status,
		log,
		middlewares.GetAllAndClear(),
	)

	middlewares.Add(localnetMW.Middleware())
	middlewares.Add(sessionMW.Middleware())
	middlewares.Add(requestMW.Middleware())
	lockHandler := lockAPI.NewHandler(
		deps.Locks, deps.Versions, deps.SessionID, log, middlewares.GetAllAndClear(),
	)

	middlewares.Add(localnetMW.Middleware())
	middlewares.Add(sessionMW.Middleware())
	middlewares.Add(requestMW.Middleware())
	chunkHandler := chunkAPI.NewHandler(deps.Progress, log, middlewares.GetAllAndClear())

	return &Handlers{
		Auth:  authHandler,
		Sync:  syncHandler,
		Lock:  lockHandler,
		Chunk: chunkHandler,
	}
}
