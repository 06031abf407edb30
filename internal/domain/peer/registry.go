package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"github.com/voidfemme/nbt-mapart-helper/internal/domain/lock"
)

// staleAfter is how long a peer may go unseen before it drops out of the
// active list.
const staleAfter = 5 * time.Minute

// Peer is a participating process on the LAN.
type Peer struct {
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	Port      int       `json:"port"`
	LastSeen  time.Time `json:"last_seen"`
	IsHost    bool      `json:"is_host"`
}

type registryState struct {
	Peers map[string]Peer `json:"peers"`
}

// Registry is the shared peer list, backed by a file guarded with the
// same advisory-lock helpers as the session store so several processes
// on one machine can share it.
type Registry struct {
	username  string
	peersFile string
	log       *slog.Logger
}

func NewRegistry(username, peersFile string, log *slog.Logger) *Registry {
	return &Registry{
		username:  username,
		peersFile: peersFile,
		log:       log.With(slog.String("component", "peer_registry")),
	}
}

// Register creates or refreshes a peer entry. Re-registration from the
// same username only bumps last_seen (and may flip the host flag).
func (r *Registry) Register(username, ipAddress string, port int, isHost bool) bool {
	err := lock.WithExclusiveLock(r.peersFile, func(f *os.File) error {
		state := r.readState(f)

		state.Peers[username] = Peer{
			Username:  username,
			IPAddress: ipAddress,
			Port:      port,
			LastSeen:  time.Now(),
			IsHost:    isHost,
		}

		return writeState(f, state)
	})
	if err != nil {
		r.log.Warn("failed to register peer",
			slog.String("peer", username),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Unregister removes a peer; unknown usernames are a no-op.
func (r *Registry) Unregister(username string) {
	err := lock.WithExclusiveLock(r.peersFile, func(f *os.File) error {
		state := r.readState(f)
		if _, known := state.Peers[username]; !known {
			return nil
		}
		delete(state.Peers, username)
		return writeState(f, state)
	})
	if err != nil {
		r.log.Warn("failed to unregister peer",
			slog.String("peer", username),
			slog.String("error", err.Error()),
		)
	}
}

// ActivePeers lists reachable peers other than ourselves, filtering out
// anyone not seen within the staleness window.
func (r *Registry) ActivePeers() []Peer {
	var active []Peer
	for _, p := range r.allPeers() {
		if p.Username != r.username && r.isActive(p) {
			active = append(active, p)
		}
	}
	return active
}

// ActiveHost returns the current active host, if any.
func (r *Registry) ActiveHost() *Peer {
	for _, p := range r.allPeers() {
		if p.IsHost && r.isActive(p) {
			host := p
			return &host
		}
	}
	return nil
}

// StartHost registers this node as host. It refuses when another active
// host already exists.
func (r *Registry) StartHost(ipAddress string, port int) bool {
	if host := r.ActiveHost(); host != nil && host.Username != r.username {
		r.log.Warn("another host is already active", slog.String("host", host.Username))
		return false
	}
	return r.Register(r.username, ipAddress, port, true)
}

// StopHost drops this node's registration.
func (r *Registry) StopHost() {
	r.Unregister(r.username)
}

func (r *Registry) allPeers() map[string]Peer {
	peers := make(map[string]Peer)

	err := lock.WithSharedLock(r.peersFile, func(f *os.File) error {
		state, err := decodeState(f)
		if err != nil {
			return err
		}
		peers = state.Peers
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn("failed to load peers", slog.String("error", err.Error()))
	}
	return peers
}

func (r *Registry) isActive(p Peer) bool {
	return time.Since(p.LastSeen) <= staleAfter
}

func (r *Registry) readState(f *os.File) *registryState {
	state, err := decodeState(f)
	if err != nil {
		r.log.Warn("peer registry corrupted, starting empty",
			slog.String("error", err.Error()))
		return &registryState{Peers: make(map[string]Peer)}
	}
	return state
}

func decodeState(f *os.File) (*registryState, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek peer registry: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read peer registry: %w", err)
	}
	if len(data) == 0 {
		return &registryState{Peers: make(map[string]Peer)}, nil
	}

	var state registryState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode peer registry: %w", err)
	}
	if state.Peers == nil {
		state.Peers = make(map[string]Peer)
	}
	return &state, nil
}

func writeState(f *os.File, state *registryState) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("encode peer registry: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate peer registry: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek peer registry: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write peer registry: %w", err)
	}
	return nil
}
