package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/voidfemme/nbt-mapart-helper/internal/app/server"
	"github.com/voidfemme/nbt-mapart-helper/internal/app/server/api"
	syncapi "github.com/voidfemme/nbt-mapart-helper/internal/app/server/api/http/sync"
	"github.com/voidfemme/nbt-mapart-helper/internal/config"
	"github.com/voidfemme/nbt-mapart-helper/internal/discovery"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/auth"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/document"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/lock"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/peer"
	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
	"github.com/voidfemme/nbt-mapart-helper/internal/domain/version"
)

type sessionContextKey struct{}

// SessionKey is the context key the CLI uses to hand the session to
// subcommands.
var SessionKey = sessionContextKey{}

// SessionFromContext pulls the LANSession the CLI stored under
// SessionKey.
func SessionFromContext(ctx context.Context) (*LANSession, bool) {
	s, ok := ctx.Value(SessionKey).(*LANSession)
	return s, ok
}

// LANSession ties one node's components together: documents, versions,
// locks, peers, discovery, and, when hosting, the sync server.
type LANSession struct {
	cfg      *config.Config
	log      *slog.Logger
	resolver ConflictResolver

	tracker   *version.Tracker
	progress  *document.Store
	session   *document.Store
	locks     *lock.Manager
	peers     *peer.Registry
	discovery *discovery.Service

	mu             sync.Mutex
	httpClient     *HTTPClient
	srv            *server.Server
	isHost         bool
	syncInProgress bool
	lastSync       *time.Time
}

func NewLANSession(cfg *config.Config, resolver ConflictResolver, log *slog.Logger) *LANSession {
	s := &LANSession{
		cfg:      cfg,
		log:      log.With(slog.String("component", "lan_session")),
		resolver: resolver,
		tracker:  version.NewTracker(cfg.VersionFile(), log),
		progress: document.NewProgressStore(cfg.ProgressFile(), log),
		session:  document.NewSessionStore(cfg.SessionFile(), log),
		locks:    lock.NewManager(cfg.Username, cfg.SessionFile(), log),
		peers:    peer.NewRegistry(cfg.Username, cfg.PeersFile(), log),
	}

	s.discovery = discovery.NewService(
		cfg.Username,
		cfg.LAN.DiscoveryPort,
		time.Duration(cfg.LAN.AnnounceInterval)*time.Second,
		s.onPeerMessage,
		log,
	)
	return s
}

// Component accessors for the CLI layer.

func (s *LANSession) Username() string { return s.cfg.Username }

func (s *LANSession) Locks() *lock.Manager { return s.locks }

func (s *LANSession) Peers() *peer.Registry { return s.peers }

func (s *LANSession) Tracker() *version.Tracker { return s.tracker }

// Client returns the HTTP client for the connected host, or nil when
// not connected.
func (s *LANSession) Client() *HTTPClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpClient
}

// Status implements the sync API's StatusProvider.
func (s *LANSession) Status() syncapi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return syncapi.Status{
		SyncInProgress: s.syncInProgress,
		LastSync:       s.lastSync,
		IsHost:         s.isHost,
		ActivePeers:    len(s.peers.ActivePeers()),
	}
}

// onPeerMessage keeps the peer registry in step with discovery traffic.
func (s *LANSession) onPeerMessage(msg discovery.Message) {
	s.peers.Register(msg.Username, msg.IPAddress, msg.Port, msg.IsHost)
}

// StartHosting turns this node into the session host: it registers as
// the single active host, starts discovery with the host flag set, and
// brings up the sync server.
func (s *LANSession) StartHosting() error {
	if !s.peers.StartHost(discovery.LocalIP(), s.cfg.LAN.SyncPort) {
		return fmt.Errorf("another host is already active on this network")
	}

	tokens, err := auth.NewService(s.cfg.LAN.Secret, s.log)
	if err != nil {
		s.peers.StopHost()
		return fmt.Errorf("init token service: %w", err)
	}

	mux := api.New(api.Deps{
		Tokens:     tokens,
		Versions:   s.tracker,
		Progress:   s.progress,
		Session:    s.session,
		Locks:      s.locks,
		Status:     s,
		ProgressID: s.cfg.ProgressFile(),
		SessionID:  s.cfg.SessionFile(),
	}, s.log)

	srv := server.New(fmt.Sprintf(":%d", s.cfg.LAN.SyncPort), mux, s.log)
	if err := srv.Start(); err != nil {
		s.peers.StopHost()
		return err
	}

	s.discovery.SetHostStatus(true)
	if err := s.discovery.Start(); err != nil {
		srv.Stop()
		s.peers.StopHost()
		return err
	}

	s.mu.Lock()
	s.srv = srv
	s.isHost = true
	s.mu.Unlock()

	s.log.Info("hosting session",
		slog.String("username", s.cfg.Username),
		slog.Int("port", s.cfg.LAN.SyncPort),
	)
	return nil
}

// Dial authenticates against a host and installs the resulting client
// on the session, without syncing anything.
func (s *LANSession) Dial(ctx context.Context, ip string, port int) (*HTTPClient, error) {
	httpClient := NewHTTPClient(ip, port, s.log)

	if _, err := httpClient.Authenticate(ctx, s.cfg.Username, s.cfg.LAN.Secret); err != nil {
		return nil, fmt.Errorf("authenticate with %s:%d: %w", ip, port, err)
	}

	s.mu.Lock()
	s.httpClient = httpClient
	s.mu.Unlock()
	return httpClient, nil
}

// ConnectToHost authenticates against a host and runs the initial sync.
// Any network or auth failure is reported as false, never an error.
func (s *LANSession) ConnectToHost(ctx context.Context, ip string, port int) bool {
	if _, err := s.Dial(ctx, ip, port); err != nil {
		s.log.Warn("failed to authenticate with host",
			slog.String("host", ip),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.peers.Register(s.cfg.Username, discovery.LocalIP(), s.cfg.LAN.SyncPort, false)

	if !s.ForceSync(ctx) {
		s.log.Warn("initial sync with host failed", slog.String("host", ip))
		return false
	}

	s.log.Info("connected to host", slog.String("host", ip), slog.Int("port", port))
	return true
}

// ForceSync pushes both tracked documents to the host, resolving version
// conflicts through the session's resolver. Returns false when any
// document failed to sync (a skipped conflict counts as synced).
func (s *LANSession) ForceSync(ctx context.Context) bool {
	httpClient := s.Client()
	if httpClient == nil {
		s.log.Warn("force sync without a connected host")
		return false
	}

	s.mu.Lock()
	if s.syncInProgress {
		s.mu.Unlock()
		s.log.Warn("sync already in progress")
		return false
	}
	s.syncInProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncInProgress = false
		s.mu.Unlock()
	}()

	ok := true
	for _, doc := range []struct {
		name   string
		store  *document.Store
		fileID string
		kind   version.ChangeKind
		push   func(context.Context, syncdoc.Document, int, bool) (*PushResult, error)
		pull   func(context.Context) (syncdoc.Document, int, error)
	}{
		{
			name:   "progress",
			store:  s.progress,
			fileID: s.cfg.ProgressFile(),
			kind:   version.ChangeProgressUpdate,
			push:   httpClient.PushProgress,
			pull:   httpClient.PullProgress,
		},
		{
			name:   "session",
			store:  s.session,
			fileID: s.cfg.SessionFile(),
			kind:   version.ChangeSessionUpdate,
			push:   httpClient.PushSession,
			pull:   httpClient.PullSession,
		},
	} {
		if !s.syncDocument(ctx, doc.name, doc.store, doc.fileID, doc.kind, doc.push, doc.pull) {
			ok = false
		}
	}

	if ok {
		now := time.Now()
		s.mu.Lock()
		s.lastSync = &now
		s.mu.Unlock()
	}
	return ok
}

// StartAutoSync periodically re-syncs with the host until ctx is done.
// A no-op when auto sync is disabled in the config.
func (s *LANSession) StartAutoSync(ctx context.Context) {
	if !s.cfg.LAN.AutoSync {
		return
	}

	interval := time.Duration(s.cfg.LAN.SyncInterval) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.ForceSync(ctx) {
					s.log.Warn("periodic sync failed")
				}
			}
		}
	}()
}

func (s *LANSession) syncDocument(
	ctx context.Context,
	name string,
	store *document.Store,
	fileID string,
	kind version.ChangeKind,
	push func(context.Context, syncdoc.Document, int, bool) (*PushResult, error),
	pull func(context.Context) (syncdoc.Document, int, error),
) bool {
	baseVersion := s.tracker.GetCurrentVersion(fileID)
	content := store.Load()

	result, err := push(ctx, content, baseVersion, false)
	if err != nil {
		s.log.Warn("failed to push document",
			slog.String("document", name),
			slog.String("error", err.Error()),
		)
		return false
	}

	if !result.Conflict {
		return s.markSynced(name, fileID)
	}

	resolution := s.resolver.Resolve(name, baseVersion, result.LocalVersion)
	s.log.Info("resolving version conflict",
		slog.String("document", name),
		slog.Int("local_version", baseVersion),
		slog.Int("host_version", result.LocalVersion),
		slog.String("resolution", string(resolution)),
	)

	switch resolution {
	case ResolutionKeepLocal:
		if _, err := push(ctx, content, baseVersion, true); err != nil {
			s.log.Warn("failed to force push document",
				slog.String("document", name),
				slog.String("error", err.Error()),
			)
			return false
		}
		return s.markSynced(name, fileID)

	case ResolutionTakeRemote:
		remote, _, err := pull(ctx)
		if err != nil {
			s.log.Warn("failed to pull document",
				slog.String("document", name),
				slog.String("error", err.Error()),
			)
			return false
		}
		if err := store.Save(remote); err != nil {
			s.log.Warn("failed to store pulled document",
				slog.String("document", name),
				slog.String("error", err.Error()),
			)
			return false
		}
		if _, _, err := s.tracker.RecordChange(
			fileID, s.cfg.Username, kind, "", "Pulled from host",
		); err != nil {
			s.log.Warn("failed to record pulled document",
				slog.String("document", name),
				slog.String("error", err.Error()),
			)
		}
		return true

	default:
		return true // skip leaves both sides alone
	}
}

func (s *LANSession) markSynced(name, fileID string) bool {
	if err := s.tracker.MarkSyncPoint(fileID, s.cfg.Username); err != nil {
		s.log.Warn("failed to mark sync point",
			slog.String("document", name),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// StartDiscovery brings up the announce/listen loop for nodes that
// joined without hosting.
func (s *LANSession) StartDiscovery() error {
	return s.discovery.Start()
}

// Stop tears the node down in dependency order: discovery first so no
// new peer finds us, then the server, then lock and peer cleanup so
// nothing we owned outlives the listener.
func (s *LANSession) Stop() {
	s.discovery.Stop()

	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	wasHost := s.isHost
	s.isHost = false
	s.mu.Unlock()

	if srv != nil {
		srv.Stop()
	}

	s.locks.Cleanup()
	if wasHost {
		s.peers.StopHost()
	} else {
		s.peers.Unregister(s.cfg.Username)
	}

	if err := s.tracker.Close(); err != nil {
		s.log.Warn("failed to close version tracker", slog.String("error", err.Error()))
	}
	s.log.Info("session stopped")
}
