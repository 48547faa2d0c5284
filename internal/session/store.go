package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("session not found")

// Store owns all Session instances. Implementations must support concurrent
// GetOrCreate from different identities and a Sweep that runs safely against
// normal traffic.
type Store interface {
	// GetOrCreate returns a snapshot of the session, creating a fresh
	// unauthenticated one on first contact.
	GetOrCreate(ctx context.Context, userID int64) (*Session, error)
	// Update runs fn against the live session (created if absent) under the
	// store lock; the mutated state is persisted best-effort afterwards.
	Update(ctx context.Context, userID int64, fn func(*Session) error) error
	// Reset clears history on an existing session, leaving authentication
	// untouched. Returns ErrNotFound when the identity has no session.
	Reset(ctx context.Context, userID int64) error
	// Sweep removes every session idle longer than timeout and reports the
	// eviction count.
	Sweep(now time.Time, timeout time.Duration) int
	// Lock acquires the per-identity mutex serializing all handling for one
	// user and returns the release func. Lock entries survive eviction so an
	// in-flight handler and a re-created session can never interleave.
	Lock(userID int64) func()
	Len() int
	Close() error
}

// MemoryStore is the volatile default Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex

	// onMutate receives a snapshot after any create/update/reset; onEvict the
	// identities removed by a sweep. Used by the persistent variants.
	onMutate func(*Session)
	onEvict  func([]int64)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	s, created := m.getOrCreateLocked(userID)
	// Any contact counts as activity for expiry purposes.
	s.LastActivityAt = time.Now().UTC()
	snap := s.clone()
	m.mu.Unlock()

	if created && m.onMutate != nil {
		m.onMutate(snap.clone())
	}
	return snap, nil
}

func (m *MemoryStore) Update(_ context.Context, userID int64, fn func(*Session) error) error {
	m.mu.Lock()
	s, _ := m.getOrCreateLocked(userID)
	if err := fn(s); err != nil {
		m.mu.Unlock()
		return err
	}
	snap := s.clone()
	m.mu.Unlock()

	if m.onMutate != nil {
		m.onMutate(snap)
	}
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, userID int64) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	s.ResetHistory()
	snap := s.clone()
	m.mu.Unlock()

	if m.onMutate != nil {
		m.onMutate(snap)
	}
	return nil
}

func (m *MemoryStore) Sweep(now time.Time, timeout time.Duration) int {
	m.mu.Lock()
	var evicted []int64
	for id, s := range m.sessions {
		if now.Sub(s.LastActivityAt) > timeout {
			evicted = append(evicted, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	if len(evicted) > 0 && m.onEvict != nil {
		m.onEvict(evicted)
	}
	return len(evicted)
}

func (m *MemoryStore) Lock(userID int64) func() {
	m.lockMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) getOrCreateLocked(userID int64) (s *Session, created bool) {
	s, ok := m.sessions[userID]
	if !ok {
		s = New(userID)
		m.sessions[userID] = s
		created = true
	}
	return s, created
}

// seed installs previously persisted sessions; used by the persistent
// variants during startup, before the store is shared.
func (m *MemoryStore) seed(sessions []*Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s == nil || s.UserID == 0 {
			continue
		}
		m.sessions[s.UserID] = s.clone()
	}
}

func (m *MemoryStore) snapshotAll() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	return out
}

// StartJanitor periodically sweeps idle sessions until ctx is cancelled.
// onSweep, when set, receives the eviction count and the remaining size.
func StartJanitor(ctx context.Context, store Store, interval, timeout time.Duration, onSweep func(evicted, remaining int)) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := store.Sweep(time.Now().UTC(), timeout)
				if n > 0 {
					log.Info().Int("evicted", n).Int("remaining", store.Len()).Msg("swept idle sessions")
				}
				if onSweep != nil {
					onSweep(n, store.Len())
				}
			}
		}
	}()
}
