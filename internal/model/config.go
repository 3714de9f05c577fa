package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mailbox provider identifiers.
const (
	ProviderGmail  = "gmail"
	ProviderIMAP   = "imap"
	ProviderMemory = "memory"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	StaticDir    string `mapstructure:"static_dir" yaml:"static_dir"`
	CookieName   string `mapstructure:"cookie_name" yaml:"cookie_name"`
	SecureCookie bool   `mapstructure:"secure_cookie" yaml:"secure_cookie"`
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	// MaxIterations is the number of decisions allowed per interaction.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`

	// MaxTurns caps the conversation context kept per session.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`

	// CompactAfterRender collapses an interaction into one summary turn
	// once the page has been rendered.
	CompactAfterRender bool `mapstructure:"compact_after_render" yaml:"compact_after_render"`
}

// LLMConfig holds settings for the Claude decision source.
type LLMConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
}

// GmailConfig configures the Gmail REST backend.
type GmailConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// IMAPConfig configures the IMAP backend used for reading mail.
type IMAPConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
	TrashFolder string `mapstructure:"trash_folder" yaml:"trash_folder"`
}

// SMTPConfig configures outgoing mail for the IMAP backend.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// MailboxConfig selects and configures the mailbox provider.
type MailboxConfig struct {
	Provider string      `mapstructure:"provider" yaml:"provider"`
	Gmail    GmailConfig `mapstructure:"gmail" yaml:"gmail"`
	IMAP     IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	SMTP     SMTPConfig  `mapstructure:"smtp" yaml:"smtp"`
}

// OAuthConfig holds the OAuth client used for the Gmail provider. The
// client secret lives in the keyring, not in this file.
type OAuthConfig struct {
	ClientID    string   `mapstructure:"client_id" yaml:"client_id"`
	RedirectURL string   `mapstructure:"redirect_url" yaml:"redirect_url"`
	AuthURL     string   `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL    string   `mapstructure:"token_url" yaml:"token_url"`
	Scopes      []string `mapstructure:"scopes" yaml:"scopes"`
}

// SessionConfig controls how long idle sessions are kept.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// StoreConfig points at the SQLite action journal.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	OAuth   OAuthConfig   `mapstructure:"oauth" yaml:"oauth"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/mailagent, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailagent")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailagent/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cookie_name", "mailagent_session")
	v.SetDefault("server.secure_cookie", false)

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.max_turns", 40)
	v.SetDefault("agent.compact_after_render", false)

	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.base_url", "")

	v.SetDefault("mailbox.provider", ProviderGmail)
	v.SetDefault("mailbox.gmail.base_url", "https://gmail.googleapis.com/gmail/v1")
	v.SetDefault("mailbox.gmail.concurrency", 5)
	v.SetDefault("mailbox.imap.host", "")
	v.SetDefault("mailbox.imap.port", "993")
	v.SetDefault("mailbox.imap.username", "")
	v.SetDefault("mailbox.imap.tls", true)
	v.SetDefault("mailbox.imap.trash_folder", "")
	v.SetDefault("mailbox.smtp.host", "")
	v.SetDefault("mailbox.smtp.port", "465")
	v.SetDefault("mailbox.smtp.tls", true)

	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.redirect_url", "http://localhost:3000/oauth2callback")
	v.SetDefault("oauth.auth_url", "https://accounts.google.com/o/oauth2/auth")
	v.SetDefault("oauth.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("oauth.scopes", []string{"https://www.googleapis.com/auth/gmail.modify"})

	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.sweep_interval", "1m")

	v.SetDefault("store.path", filepath.Join(ConfigDir(), "journal.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MAILAGENT_ override file values
// (MAILAGENT_MAILBOX_PROVIDER overrides mailbox.provider). A missing file
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c *AppConfig) Validate() error {
	switch c.Mailbox.Provider {
	case ProviderGmail, ProviderIMAP, ProviderMemory:
	default:
		return fmt.Errorf("unknown mailbox provider %q", c.Mailbox.Provider)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxTurns <= 1 {
		return fmt.Errorf("agent.max_turns must be greater than 1, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.MaxTurns <= c.Agent.MaxIterations {
		return fmt.Errorf("agent.max_turns (%d) must exceed agent.max_iterations (%d)", c.Agent.MaxTurns, c.Agent.MaxIterations)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("agent", cfg.Agent)
	v.Set("llm", cfg.LLM)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("oauth", cfg.OAuth)
	v.Set("session", map[string]string{
		"ttl":            cfg.Session.TTL.String(),
		"sweep_interval": cfg.Session.SweepInterval.String(),
	})
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
