package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/auth"
	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/llm"
	"github.com/nhle/mail-agent/internal/mailbox"
	"github.com/nhle/mail-agent/internal/mailbox/gmail"
	"github.com/nhle/mail-agent/internal/mailbox/memory"
	"github.com/nhle/mail-agent/internal/model"
	"github.com/nhle/mail-agent/internal/session"
	"github.com/nhle/mail-agent/internal/store"
)

type mapSecrets map[string]string

func (m mapSecrets) Resolve(key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", credential.ErrNotFound
}

type renderOnly struct{}

func (renderOnly) Decide(context.Context, agent.Transcript) (agent.Decision, error) {
	return agent.Terminal{Output: "<p>inbox</p>"}, nil
}

func testConfig(t *testing.T, provider string) *model.AppConfig {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Mailbox.Provider = provider
	cfg.Store.Path = filepath.Join(t.TempDir(), "journal.db")
	return cfg
}

func TestNewMemoryRunsAndJournals(t *testing.T) {
	cfg := testConfig(t, model.ProviderMemory)

	a, err := New(cfg, mapSecrets{}, renderOnly{}, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	sess, _ := a.Sessions.GetOrCreate("")
	mbox, err := a.Mailboxes.ForSession(context.Background(), sess)
	require.NoError(t, err)

	out, err := a.Agent.Run(context.Background(), sess.Conversation, mbox, "Initial inbox request")
	require.NoError(t, err)
	assert.Equal(t, "<p>inbox</p>", out)

	records, err := a.Journal.ListActions(context.Background(), store.ActionFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewWithoutAPIKeyFails(t *testing.T) {
	cfg := testConfig(t, model.ProviderMemory)

	_, err := New(cfg, mapSecrets{}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)
}

func TestNewGmailNeedsOAuthClient(t *testing.T) {
	cfg := testConfig(t, model.ProviderGmail)
	cfg.OAuth.ClientID = ""

	_, err := New(cfg, mapSecrets{}, renderOnly{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestNewIMAPNeedsPassword(t *testing.T) {
	cfg := testConfig(t, model.ProviderIMAP)
	cfg.Mailbox.IMAP.Host = "imap.example.com"
	cfg.Mailbox.IMAP.Username = "me@example.com"

	_, err := New(cfg, mapSecrets{}, renderOnly{}, zerolog.Nop())
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestMailboxesPerSession(t *testing.T) {
	m, err := NewMailboxes(model.MailboxConfig{Provider: model.ProviderMemory}, nil, "")
	require.NoError(t, err)

	sessions := session.NewStore(session.WithEvictHook(m.Forget))
	a, _ := sessions.GetOrCreate("")
	b, _ := sessions.GetOrCreate("")

	boxA, err := m.ForSession(context.Background(), a)
	require.NoError(t, err)
	again, err := m.ForSession(context.Background(), a)
	require.NoError(t, err)
	boxB, err := m.ForSession(context.Background(), b)
	require.NoError(t, err)

	assert.Same(t, boxA, again)
	assert.NotSame(t, boxA, boxB)
	assert.IsType(t, &memory.Mailbox{}, boxA)

	sessions.Delete(a.ID)
	fresh, err := m.ForSession(context.Background(), a)
	require.NoError(t, err)
	assert.NotSame(t, boxA, fresh)
}

func TestMailboxesGmailUsesSessionTokens(t *testing.T) {
	provider := auth.NewProvider(model.OAuthConfig{ClientID: "id", TokenURL: "http://127.0.0.1:0/token"}, "secret")
	m, err := NewMailboxes(model.MailboxConfig{
		Provider: model.ProviderGmail,
		Gmail:    model.GmailConfig{BaseURL: "http://127.0.0.1:0"},
	}, provider, "")
	require.NoError(t, err)

	sess, _ := session.NewStore().GetOrCreate("")
	box, err := m.ForSession(context.Background(), sess)
	require.NoError(t, err)
	assert.IsType(t, &gmail.Client{}, box)

	// Without a token the client reports the session as signed out.
	_, err = box.ListRecent(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, mailbox.IsUnauthorized(err))
}
