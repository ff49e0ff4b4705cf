package checker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the conversational state carried between an analysis and its
// follow-up rounds. Answers accumulate across refine calls.
type Session struct {
	ID        string            `json:"id"`
	Symptoms  []string          `json:"symptoms"`
	Age       *int              `json:"age,omitempty"`
	Sex       string            `json:"sex,omitempty"`
	Severity  map[string]string `json:"severity,omitempty"`
	Duration  map[string]string `json:"duration,omitempty"`
	Answers   map[string]string `json:"answers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SessionStore persists sessions for the configured TTL. Implementations
// must be safe for concurrent use.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore is the default in-process session store. Expired entries are
// dropped lazily on read and swept by a background reaper.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	ttl      time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryStore creates a store whose sessions expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.reap()
	return s
}

func (s *MemoryStore) reap() {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrSessionNotFound
	}
	cp := *e.session
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	cp := *sess
	s.mu.Lock()
	s.entries[sess.ID] = memoryEntry{session: &cp, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// keyedMutex serializes work per session id so concurrent refine calls for
// the same session cannot interleave, while different sessions never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
