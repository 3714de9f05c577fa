// Package server exposes the agent over HTTP: the page endpoint used by
// the browser client, the OAuth sign-in flow, the action journal and
// operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/session"
	"github.com/nhle/mail-agent/internal/store"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "mailagent_session"

// Runner processes one interaction against a session's context.
type Runner interface {
	Run(ctx context.Context, conv *agent.ConversationContext, mbox mailbox.Client, interaction string) (string, error)
}

// MailboxFactory returns the mailbox a session operates on.
type MailboxFactory interface {
	ForSession(ctx context.Context, sess *session.Session) (mailbox.Client, error)
}

// ActionLister reads the action journal.
type ActionLister interface {
	ListActions(ctx context.Context, filter store.ActionFilter) ([]store.ActionRecord, error)
}

// Config wires the server's collaborators. Optional fields left nil
// disable the routes that need them.
type Config struct {
	Agent     Runner
	Sessions  *session.Store
	Mailboxes MailboxFactory

	OAuth   *auth.Provider // enables /auth/google and /oauth2callback
	Actions ActionLister   // enables /api/actions
	Metrics http.Handler   // enables /metrics

	StaticDir    string
	CookieName   string
	SecureCookie bool

	Logger zerolog.Logger
}

// Server handles HTTP requests for the agent.
type Server struct {
	agent     Runner
	sessions  *session.Store
	mailboxes MailboxFactory
	oauth     *auth.Provider
	actions   ActionLister
	metrics   http.Handler

	staticDir    string
	cookieName   string
	secureCookie bool

	log zerolog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Server{
		agent:        cfg.Agent,
		sessions:     cfg.Sessions,
		mailboxes:    cfg.Mailboxes,
		oauth:        cfg.OAuth,
		actions:      cfg.Actions,
		metrics:      cfg.Metrics,
		staticDir:    cfg.StaticDir,
		cookieName:   cookieName,
		secureCookie: cfg.SecureCookie,
		log:          cfg.Logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/llm", s.handleLLM)
		if s.actions != nil {
			r.Get("/actions", s.handleActions)
		}
	})

	if s.oauth != nil {
		r.Get("/auth/google", s.handleSignIn)
		r.Get("/oauth2callback", s.handleOAuthCallback)
	}
	r.Post("/auth/logout", s.handleLogout)

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}

	return r
}

// requestLogger puts a request-scoped logger in the context and logs
// each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
