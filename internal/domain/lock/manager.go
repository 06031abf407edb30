package lock

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// LockInfo describes who holds a chunk lock.
type LockInfo struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// ActiveUser is one entry of the active-user list.
type ActiveUser struct {
	Username   string    `json:"username"`
	LastActive time.Time `json:"last_active"`
}

// sessionState is the on-disk shape of the shared session store. The same
// file doubles as the session document synced between peers.
type sessionState struct {
	ChunkLocks  map[string]LockInfo             `json:"chunk_locks"`
	ActiveUsers map[string]map[string]time.Time `json:"active_users"`
}

func emptyState() *sessionState {
	return &sessionState{
		ChunkLocks:  make(map[string]LockInfo),
		ActiveUsers: make(map[string]map[string]time.Time),
	}
}

// Manager serializes access to named chunks across processes sharing one
// session file. All mutual exclusion comes from the file lock; there is
// deliberately no in-memory mutex guarding the store itself.
type Manager struct {
	username    string
	sessionFile string
	log         *slog.Logger

	mu    sync.Mutex
	owned map[string]struct{} // chunks this instance believes it holds
}

func NewManager(username, sessionFile string, log *slog.Logger) *Manager {
	return &Manager{
		username:    username,
		sessionFile: sessionFile,
		log:         log.With(slog.String("component", "lock_manager")),
		owned:       make(map[string]struct{}),
	}
}

// Acquire attempts to take the lock on resourceID for this instance's
// user. Re-acquiring a lock we already own refreshes its timestamp and
// succeeds; a lock held by someone else fails without mutating the
// store. Errors are logged and reported as failure, never raised.
func (m *Manager) Acquire(resourceID string) bool {
	return m.AcquireAs(m.username, resourceID)
}

// AcquireAs takes the lock on behalf of username. The sync server uses
// this to attribute locks to the authenticated remote user rather than
// to the host.
func (m *Manager) AcquireAs(username, resourceID string) bool {
	acquired := false

	err := WithExclusiveLock(m.sessionFile, func(f *os.File) error {
		state := m.readState(f)

		if info, locked := state.ChunkLocks[resourceID]; locked {
			if info.Username != username {
				return nil
			}
			info.Timestamp = time.Now()
			state.ChunkLocks[resourceID] = info
		} else {
			state.ChunkLocks[resourceID] = LockInfo{
				Username:  username,
				Timestamp: time.Now(),
			}
		}

		state.ActiveUsers[username] = map[string]time.Time{
			"last_active": time.Now(),
		}

		if err := writeState(f, state); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil {
		m.log.Warn("failed to acquire lock",
			slog.String("resource", resourceID),
			slog.String("error", err.Error()),
		)
		return false
	}

	if acquired && username == m.username {
		m.mu.Lock()
		m.owned[resourceID] = struct{}{}
		m.mu.Unlock()
	}
	return acquired
}

// Release drops the lock on resourceID if this user owns it. Releasing a
// lock we do not own (or that is not held) returns false.
func (m *Manager) Release(resourceID string) bool {
	return m.ReleaseAs(m.username, resourceID)
}

// ReleaseAs drops the lock on behalf of username.
func (m *Manager) ReleaseAs(username, resourceID string) bool {
	released := false

	err := WithExclusiveLock(m.sessionFile, func(f *os.File) error {
		state := m.readState(f)

		info, locked := state.ChunkLocks[resourceID]
		if !locked || info.Username != username {
			return nil
		}

		delete(state.ChunkLocks, resourceID)
		state.ActiveUsers[username] = map[string]time.Time{
			"last_active": time.Now(),
		}

		if err := writeState(f, state); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		m.log.Warn("failed to release lock",
			slog.String("resource", resourceID),
			slog.String("error", err.Error()),
		)
		return false
	}

	if released && username == m.username {
		m.mu.Lock()
		delete(m.owned, resourceID)
		m.mu.Unlock()
	}
	return released
}

// GetLockInfo returns the current lock record for resourceID, or nil when
// the chunk is unlocked or the store is unreadable.
func (m *Manager) GetLockInfo(resourceID string) *LockInfo {
	var info *LockInfo

	err := WithSharedLock(m.sessionFile, func(f *os.File) error {
		state, err := decodeState(f)
		if err != nil {
			return err
		}
		if li, ok := state.ChunkLocks[resourceID]; ok {
			info = &li
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return info
}

// GetActiveUsers lists everyone with an entry in the session store.
func (m *Manager) GetActiveUsers() []ActiveUser {
	var users []ActiveUser

	err := WithSharedLock(m.sessionFile, func(f *os.File) error {
		state, err := decodeState(f)
		if err != nil {
			return err
		}
		for username, info := range state.ActiveUsers {
			users = append(users, ActiveUser{
				Username:   username,
				LastActive: info["last_active"],
			})
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return users
}

// OwnedLocks returns the chunks this instance currently believes it holds.
func (m *Manager) OwnedLocks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	locks := make([]string, 0, len(m.owned))
	for resourceID := range m.owned {
		locks = append(locks, resourceID)
	}
	return locks
}

// Cleanup removes this user from the active list and releases every lock
// they hold, all inside a single critical section so concurrent peers
// never observe a partially cleaned session.
func (m *Manager) Cleanup() {
	err := WithExclusiveLock(m.sessionFile, func(f *os.File) error {
		state := m.readState(f)

		delete(state.ActiveUsers, m.username)

		for resourceID, info := range state.ChunkLocks {
			if info.Username == m.username {
				delete(state.ChunkLocks, resourceID)
			}
		}

		return writeState(f, state)
	})
	if err != nil {
		m.log.Warn("session cleanup failed", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	m.owned = make(map[string]struct{})
	m.mu.Unlock()
}

// readState decodes the store, replacing corrupt content with an empty
// state. The replacement only becomes durable on the next write.
func (m *Manager) readState(f *os.File) *sessionState {
	state, err := decodeState(f)
	if err != nil {
		m.log.Warn("session store corrupted, starting with empty state",
			slog.String("error", err.Error()),
		)
		return emptyState()
	}
	return state
}

func decodeState(f *os.File) (*sessionState, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek session store: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}

	if len(data) == 0 {
		return emptyState(), nil
	}

	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session store: %w", err)
	}
	if state.ChunkLocks == nil {
		state.ChunkLocks = make(map[string]LockInfo)
	}
	if state.ActiveUsers == nil {
		state.ActiveUsers = make(map[string]map[string]time.Time)
	}
	return &state, nil
}

func writeState(f *os.File, state *sessionState) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("encode session store: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate session store: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek session store: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return nil
}
