package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// Store holds sessions in memory, keyed by id, and evicts those idle
// for longer than the TTL.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
	onEvict  func(*Session)
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the idle timeout.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxTurns sets the context size of new sessions.
func WithMaxTurns(n int) Option {
	return func(s *Store) { s.maxTurns = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEvictHook runs fn for every session removed by Delete or Sweep.
func WithEvictHook(fn func(*Session)) Option {
	return func(s *Store) { s.onEvict = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a live session and refreshes its last-seen time.
func (s *Store) Get(id string) (*Session, bool) {
	now := s.now()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || s.expired(sess, now) {
		return nil, false
	}

	sess.touch(now)
	return sess, true
}

// GetOrCreate returns the session for id, creating a new one with a
// fresh id when id is empty, unknown or expired. created reports
// whether a new session was made.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.create(), true
}

func (s *Store) create() *Session {
	sess := newSession(uuid.NewString(), s.maxTurns, s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Delete removes a session, as on logout.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok && s.onEvict != nil {
		s.onEvict(sess)
	}
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every expired session and returns how many it removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, sess := range evicted {
			s.onEvict(sess)
		}
	}
	return len(evicted)
}

// Run sweeps on every tick of interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := zerolog.Ctx(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("remaining", s.Len()).Msg("swept idle sessions")
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastSeen()) > s.ttl
}
