// Package app assembles the agent, its mailbox backends, the session
// store and the action journal from configuration.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/llm"
	"github.com/nhle/mail-agent/internal/metrics"
	"github.com/nhle/mail-agent/internal/model"
	"github.com/nhle/mail-agent/internal/session"
	"github.com/nhle/mail-agent/internal/store"
)

// Secrets reads credentials by key.
type Secrets interface {
	Resolve(key string) (string, error)
}

// App holds the assembled components.
type App struct {
	Config    *model.AppConfig
	Agent     *agent.Agent
	Sessions  *session.Store
	Mailboxes *Mailboxes
	Journal   *store.SQLiteStore
	Metrics   *metrics.Metrics
	OAuth     *auth.Provider
}

// New builds an App. source overrides the Claude decision source when
// non-nil.
func New(cfg *model.AppConfig, secrets Secrets, source agent.DecisionSource, log zerolog.Logger) (*App, error) {
	if source == nil {
		apiKey, err := optionalSecret(secrets, credential.KeyAnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		claude, err := llm.NewClaude(llm.Config{
			APIKey:    apiKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			BaseURL:   cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating decision source: %w", err)
		}
		source = claude
	}

	var provider *auth.Provider
	if cfg.OAuth.ClientID != "" {
		secret, err := optionalSecret(secrets, credential.KeyGoogleClientSecret)
		if err != nil {
			return nil, err
		}
		provider = auth.NewProvider(cfg.OAuth, secret)
	}

	var password string
	if cfg.Mailbox.Provider == model.ProviderIMAP {
		var err error
		if password, err = secrets.Resolve(credential.KeyMailPassword); err != nil {
			return nil, fmt.Errorf("reading mail password: %w", err)
		}
	}

	mailboxes, err := NewMailboxes(cfg.Mailbox, provider, password)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory %s: %w", dir, err)
		}
	}
	journal, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", cfg.Store.Path, err)
	}

	m := metrics.New()

	sessions := session.NewStore(
		session.WithTTL(cfg.Session.TTL),
		session.WithMaxTurns(cfg.Agent.MaxTurns),
		session.WithEvictHook(func(s *session.Session) {
			mailboxes.Forget(s)
			log.Debug().Str("session", s.ID).Msg("session evicted")
		}),
	)
	m.RegisterSessions(sessions.Len)

	a := agent.New(source, agent.Options{
		MaxIterations:      cfg.Agent.MaxIterations,
		CompactAfterRender: cfg.Agent.CompactAfterRender,
		Journal:            journal,
		Observer:           m,
	})

	return &App{
		Config:    cfg,
		Agent:     a,
		Sessions:  sessions,
		Mailboxes: mailboxes,
		Journal:   journal,
		Metrics:   m,
		OAuth:     provider,
	}, nil
}

// Close releases the journal.
func (a *App) Close() error {
	return a.Journal.Close()
}

// optionalSecret resolves key, treating a missing credential as empty so
// the consumer can report what it needs.
func optionalSecret(secrets Secrets, key string) (string, error) {
	v, err := secrets.Resolve(key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}
