// Package auth holds per-session OAuth tokens and the OAuth client used
// to obtain them.
package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// State is the token pair of one session. It is safe for concurrent use.
type State struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewState returns a State holding tok, which may be nil.
func NewState(tok *oauth2.Token) *State {
	return &State{token: tok}
}

// Token returns a copy of the current token.
func (s *State) Token() (*oauth2.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, false
	}
	cp := *s.token
	return &cp, true
}

// Set replaces the current token. A refreshed token that omits the
// refresh token keeps the previous one.
func (s *State) Set(tok *oauth2.Token) {
	if tok == nil {
		s.Clear()
		return
	}
	cp := *tok
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.RefreshToken == "" && s.token != nil {
		cp.RefreshToken = s.token.RefreshToken
	}
	s.token = &cp
}

// Clear drops both tokens, returning the session to unauthenticated.
func (s *State) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// Authenticated reports whether a token is present.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}
