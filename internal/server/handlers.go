package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/session"
	"github.com/nhle/mail-agent/internal/store"
)

// maxRequestBody bounds the JSON body of POST /api/llm.
const maxRequestBody = 1 << 20

type llmRequest struct {
	Target *string `json:"target"`
}

type llmResponse struct {
	HTML string `json:"html"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type actionsResponse struct {
	Actions []store.ActionRecord `json:"actions"`
}

// handleLLM runs one interaction for the caller's session and returns the
// rendered page.
func (s *Server) handleLLM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req llmRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, "Missing or invalid 'target' field")
		return
	}
	if req.Target == nil || strings.TrimSpace(*req.Target) == "" {
		writeError(w, http.StatusBadRequest, "Missing or invalid 'target' field")
		return
	}

	sess := s.session(w, r)
	log := zerolog.Ctx(ctx).With().Str("session", sess.ID).Logger()
	ctx = agent.WithSessionID(log.WithContext(ctx), sess.ID)

	release, err := sess.Acquire(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("request cancelled while waiting for session")
		writeError(w, http.StatusServiceUnavailable, "Request cancelled")
		return
	}
	defer release()

	mbox, err := s.mailboxes.ForSession(ctx, sess)
	if err != nil {
		log.Error().Err(err).Msg("opening mailbox")
		writeError(w, http.StatusInternalServerError, "Failed to generate HTML content")
		return
	}

	html, err := s.agent.Run(ctx, sess.Conversation, mbox, *req.Target)
	if err != nil {
		log.Error().Err(err).Msg("interaction failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate HTML content")
		return
	}

	writeJSON(w, http.StatusOK, llmResponse{HTML: html})
}

// handleSignIn starts the OAuth flow for the caller's session.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	state := uuid.NewString()
	sess.SetOAuthState(state)

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback stores the exchanged tokens in the session that
// started the flow.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn().Str("error", r.URL.Query().Get("error")).Msg("oauth callback without authorization code")
		http.Error(w, "Authorization code missing.", http.StatusBadRequest)
		return
	}

	sess, ok := s.existingSession(r)
	if !ok || !sess.ConsumeOAuthState(r.URL.Query().Get("state")) {
		log.Warn().Msg("oauth callback with unknown state")
		http.Error(w, "Sign-in request expired or invalid.", http.StatusBadRequest)
		return
	}

	if err := s.oauth.Exchange(r.Context(), code, sess.Auth); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("exchanging authorization code")
		http.Error(w, "Failed to authenticate with Google.", http.StatusInternalServerError)
		return
	}

	log.Info().Str("session", sess.ID).Msg("signed in")
	http.Redirect(w, r, "/?justAuthenticated=true", http.StatusFound)
}

// handleLogout forgets the caller's session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.existingSession(r); ok {
		s.sessions.Delete(sess.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleActions lists the journaled actions of the caller's session.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.existingSession(r)
	if !ok {
		writeJSON(w, http.StatusOK, actionsResponse{Actions: []store.ActionRecord{}})
		return
	}

	filter := store.ActionFilter{SessionID: sess.ID, Kind: r.URL.Query().Get("kind")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	records, err := s.actions.ListActions(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("listing actions")
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}
	if records == nil {
		records = []store.ActionRecord{}
	}
	writeJSON(w, http.StatusOK, actionsResponse{Actions: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"time":     time.Now().UTC(),
	})
}

// session returns the caller's session, creating one and setting the
// cookie when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(s.cookieName); err == nil {
		id = c.Value
	}

	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     s.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) existingSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
