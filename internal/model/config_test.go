package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 40, cfg.Agent.MaxTurns)
	assert.False(t, cfg.Agent.CompactAfterRender)
	assert.Equal(t, ProviderGmail, cfg.Mailbox.Provider)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.modify"}, cfg.OAuth.Scopes)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  max_iterations: 6
mailbox:
  provider: imap
  imap:
    host: imap.example.com
session:
  ttl: 10m
`), 0o600))
	t.Setenv("MAILAGENT_MAILBOX_IMAP_USERNAME", "me@example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Agent.MaxIterations)
	assert.Equal(t, ProviderIMAP, cfg.Mailbox.Provider)
	assert.Equal(t, "imap.example.com", cfg.Mailbox.IMAP.Host)
	assert.Equal(t, "me@example.com", cfg.Mailbox.IMAP.Username)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"unknown provider", func(c *AppConfig) { c.Mailbox.Provider = "pop3" }},
		{"zero iterations", func(c *AppConfig) { c.Agent.MaxIterations = 0 }},
		{"tiny context", func(c *AppConfig) { c.Agent.MaxTurns = 1 }},
		{"context smaller than a run", func(c *AppConfig) { c.Agent.MaxTurns = c.Agent.MaxIterations }},
		{"no ttl", func(c *AppConfig) { c.Session.TTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Mailbox.Provider = ProviderMemory
	cfg.Agent.CompactAfterRender = true
	cfg.Session.TTL = 45 * time.Minute

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderMemory, loaded.Mailbox.Provider)
	assert.True(t, loaded.Agent.CompactAfterRender)
	assert.Equal(t, 45*time.Minute, loaded.Session.TTL)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, NoSubject, OrDefault("", NoSubject))
	assert.Equal(t, "Hi", OrDefault("Hi", NoSubject))
}
