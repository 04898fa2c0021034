// Package session owns diagnosis sessions: the in-memory store, the state
// machine guards and the per-session result generation locks.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-persona/internal/domain"
)

// Store is a volatile, process-local session store. Sessions are deep
// copied on every read and write so callers never share state.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	locks    map[string]*generationLock
	now      func() time.Time
}

type generationLock struct {
	sem  chan struct{}
	refs int
}

// ErrStale is the cause of the InvalidState error returned by Update when
// the session changed after it was read.
var ErrStale = errors.New("stale session version")

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		locks:    make(map[string]*generationLock),
		now:      time.Now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) Create(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		return domain.ErrValidation("session id is required")
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return domain.ErrInvalidState("session %s already exists", sess.ID)
	}

	now := s.now()
	c := sess.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.sessions[c.ID] = c
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound(id)
	}
	return sess.Clone(), nil
}

// Update replaces a stored session read at the same version, then
// advances sess.Version to the stored one. The state may only stay put or
// take a single forward step.
func (s *Store) Update(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[sess.ID]
	if !exists {
		return domain.ErrSessionNotFound(sess.ID)
	}
	if sess.Version != current.Version {
		return domain.ErrInvalidState("session %s was modified concurrently (version %d, stored %d)",
			sess.ID, sess.Version, current.Version).WithCause(ErrStale)
	}
	if sess.State != current.State && !current.State.CanAdvanceTo(sess.State) {
		return domain.ErrInvalidState("session %s cannot move from %s to %s", sess.ID, current.State, sess.State)
	}

	c := sess.Clone()
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = s.now()
	c.Version = current.Version + 1
	s.sessions[c.ID] = c
	sess.Version = c.Version
	return nil
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return false
	}
	delete(s.sessions, id)
	return true
}

// List returns copies of all sessions ordered by creation time.
func (s *Store) List(ctx context.Context) []*domain.Session {
	s.mu.Lock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepCompleted removes RESULT sessions completed before cutoff and
// returns how many were removed.
func (s *Store) SweepCompleted(ctx context.Context, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.State != domain.StateResult || sess.CompletedAt == nil {
			continue
		}
		if sess.CompletedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// LockGeneration acquires the result generation lock of a session and
// returns its release function. Lock entries are created on demand and
// dropped when the last holder or waiter leaves, both under the store
// mutex, so two callers can never end up with different locks for one id.
// A waiter gives up when ctx is done.
func (s *Store) LockGeneration(ctx context.Context, id string) (unlock func(), err error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &generationLock{sem: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.release(id, l)
		return nil, fmt.Errorf("wait for result generation of %s: %w", id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.release(id, l)
		})
	}, nil
}

func (s *Store) release(id string, l *generationLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// lockCount reports the number of live lock entries.
func (s *Store) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
