// Package session keeps the per-user state of the agent: conversation
// context, OAuth tokens and the single-flight gate, evicted after a
// period of inactivity.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/auth"
)

// Session is the state of one browser or terminal client.
type Session struct {
	ID           string
	Conversation *agent.ConversationContext
	Auth         *auth.State
	CreatedAt    time.Time

	gate chan struct{}

	mu         sync.Mutex
	lastSeen   time.Time
	oauthState string
}

func newSession(id string, maxTurns int, now time.Time) *Session {
	return &Session{
		ID:           id,
		Conversation: agent.NewConversationContext(maxTurns),
		Auth:         auth.NewState(nil),
		CreatedAt:    now,
		gate:         make(chan struct{}, 1),
		lastSeen:     now,
	}
}

// Acquire waits until no other interaction of this session is running.
// The returned func releases the session.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LastSeen returns the time of the last access.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// SetOAuthState remembers the state parameter of a pending sign-in.
func (s *Session) SetOAuthState(state string) {
	s.mu.Lock()
	s.oauthState = state
	s.mu.Unlock()
}

// ConsumeOAuthState reports whether state matches the pending sign-in
// and clears it either way.
func (s *Session) ConsumeOAuthState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.oauthState != "" && s.oauthState == state
	s.oauthState = ""
	return ok
}
