package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/mailbox/gmail"
	"github.com/nhle/mail-agent/internal/mailbox/imap"
	"github.com/nhle/mail-agent/internal/mailbox/memory"
	"github.com/nhle/mail-agent/internal/model"
	"github.com/nhle/mail-agent/internal/session"
)

// ErrOAuthNotConfigured is returned when the gmail provider is selected
// without an OAuth client.
var ErrOAuthNotConfigured = errors.New("gmail provider requires oauth.client_id and the google-client-secret credential")

// Mailboxes hands every session the mailbox of the configured provider.
type Mailboxes struct {
	cfg   model.MailboxConfig
	oauth *auth.Provider
	imap  *imap.Client

	mu     sync.Mutex
	memory map[string]*memory.Mailbox
}

// NewMailboxes validates that the provider has what it needs. password
// is only used by the imap provider.
func NewMailboxes(cfg model.MailboxConfig, oauth *auth.Provider, password string) (*Mailboxes, error) {
	m := &Mailboxes{cfg: cfg, oauth: oauth, memory: make(map[string]*memory.Mailbox)}

	switch cfg.Provider {
	case model.ProviderGmail:
		if oauth == nil {
			return nil, ErrOAuthNotConfigured
		}
	case model.ProviderIMAP:
		if cfg.IMAP.Host == "" || cfg.IMAP.Username == "" {
			return nil, errors.New("imap provider requires mailbox.imap.host and mailbox.imap.username")
		}
		smtp := cfg.SMTP
		if smtp.Host == "" {
			smtp.Host = cfg.IMAP.Host
		}
		m.imap = imap.New(cfg.IMAP, smtp, password)
	case model.ProviderMemory:
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", cfg.Provider)
	}

	return m, nil
}

// ForSession returns the mailbox for sess. Gmail clients use the
// session's tokens and clear them when the API answers 401. The memory
// provider gives each session its own seeded mailbox.
func (m *Mailboxes) ForSession(ctx context.Context, sess *session.Session) (mailbox.Client, error) {
	switch m.cfg.Provider {
	case model.ProviderGmail:
		return gmail.New(gmail.Config{
			BaseURL:        m.cfg.Gmail.BaseURL,
			Tokens:         m.oauth.TokenSource(ctx, sess.Auth),
			OnUnauthorized: sess.Auth.Clear,
			Concurrency:    m.cfg.Gmail.Concurrency,
		}), nil
	case model.ProviderIMAP:
		return m.imap, nil
	case model.ProviderMemory:
		m.mu.Lock()
		defer m.mu.Unlock()
		box, ok := m.memory[sess.ID]
		if !ok {
			box = memory.Seeded()
			m.memory[sess.ID] = box
		}
		return box, nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", m.cfg.Provider)
	}
}

// Forget drops per-session mailbox state. It is the session store's
// eviction hook.
func (m *Mailboxes) Forget(sess *session.Session) {
	m.mu.Lock()
	delete(m.memory, sess.ID)
	m.mu.Unlock()
}
