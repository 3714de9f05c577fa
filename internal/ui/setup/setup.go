// Package setup is the interactive first-run wizard. It writes the
// configuration file and stores secrets in the keyring.
package setup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/model"
)

// SecretWriter stores credentials.
type SecretWriter interface {
	Set(key, value string) error
}

// Answers holds what the wizard collected.
type Answers struct {
	Provider     string
	AnthropicKey string

	ClientID     string
	ClientSecret string
	RedirectURL  string

	IMAPHost string
	IMAPPort string
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	TLS      bool
}

// answersFrom pre-fills the wizard from an existing configuration.
func answersFrom(cfg *model.AppConfig) *Answers {
	return &Answers{
		Provider:    cfg.Mailbox.Provider,
		ClientID:    cfg.OAuth.ClientID,
		RedirectURL: cfg.OAuth.RedirectURL,
		IMAPHost:    cfg.Mailbox.IMAP.Host,
		IMAPPort:    cfg.Mailbox.IMAP.Port,
		SMTPHost:    cfg.Mailbox.SMTP.Host,
		SMTPPort:    cfg.Mailbox.SMTP.Port,
		Username:    cfg.Mailbox.IMAP.Username,
		TLS:         cfg.Mailbox.IMAP.TLS,
	}
}

// Form builds the wizard over a.
func Form(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Mailbox").
				Description("Where the agent reads and sends mail").
				Options(
					huh.NewOption("Gmail - sign in with Google in the browser", model.ProviderGmail),
					huh.NewOption("IMAP/SMTP - any mail server with a password", model.ProviderIMAP),
					huh.NewOption("Demo - an in-memory mailbox with sample messages", model.ProviderMemory),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("Anthropic API key").
				Description("Leave empty to keep the stored key or use ANTHROPIC_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&a.AnthropicKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OAuth client ID").
				Description("Google Cloud OAuth client for a web application").
				Value(&a.ClientID).
				Validate(validateRequired("Client ID")),
			huh.NewInput().
				Title("OAuth client secret").
				Description("Leave empty to keep the stored secret").
				EchoMode(huh.EchoModePassword).
				Value(&a.ClientSecret),
			huh.NewInput().
				Title("Redirect URL").
				Description("Must match the client's authorized redirect URI").
				Placeholder("http://localhost:3000/oauth2callback").
				Value(&a.RedirectURL).
				Validate(validateRequired("Redirect URL")),
		).WithHideFunc(func() bool { return a.Provider != model.ProviderGmail }),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&a.IMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&a.IMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("Empty uses the IMAP host").
				Placeholder("smtp.example.com").
				Value(&a.SMTPHost),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("465").
				Value(&a.SMTPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Placeholder("user@example.com").
				Value(&a.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account or app password. Leave empty to keep the stored one").
				EchoMode(huh.EchoModePassword).
				Value(&a.Password),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Implicit TLS; No uses STARTTLS").
				Affirmative("Yes").
				Negative("No").
				Value(&a.TLS),
		).WithHideFunc(func() bool { return a.Provider != model.ProviderIMAP }),
	)
}

// Run shows the wizard and saves the result. It returns false when the
// user aborted.
func Run(path string, cfg *model.AppConfig, secrets SecretWriter) (bool, error) {
	a := answersFrom(cfg)
	if err := Form(a).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("running setup form: %w", err)
	}
	if err := Save(path, cfg, secrets, a); err != nil {
		return false, err
	}
	return true, nil
}

// Apply copies the answers into cfg.
func (a *Answers) Apply(cfg *model.AppConfig) {
	cfg.Mailbox.Provider = a.Provider

	switch a.Provider {
	case model.ProviderGmail:
		cfg.OAuth.ClientID = strings.TrimSpace(a.ClientID)
		cfg.OAuth.RedirectURL = strings.TrimSpace(a.RedirectURL)
	case model.ProviderIMAP:
		cfg.Mailbox.IMAP.Host = strings.TrimSpace(a.IMAPHost)
		cfg.Mailbox.IMAP.Port = strings.TrimSpace(a.IMAPPort)
		cfg.Mailbox.IMAP.Username = strings.TrimSpace(a.Username)
		cfg.Mailbox.IMAP.TLS = a.TLS
		cfg.Mailbox.SMTP.Host = strings.TrimSpace(a.SMTPHost)
		cfg.Mailbox.SMTP.Port = strings.TrimSpace(a.SMTPPort)
		cfg.Mailbox.SMTP.TLS = a.TLS
	}
}

// Secrets returns the credentials the user entered, by keyring key.
// Empty answers are left out so stored values are kept.
func (a *Answers) Secrets() map[string]string {
	out := make(map[string]string)
	if a.AnthropicKey != "" {
		out[credential.KeyAnthropicAPIKey] = a.AnthropicKey
	}
	if a.Provider == model.ProviderGmail && a.ClientSecret != "" {
		out[credential.KeyGoogleClientSecret] = a.ClientSecret
	}
	if a.Provider == model.ProviderIMAP && a.Password != "" {
		out[credential.KeyMailPassword] = a.Password
	}
	return out
}

// Save applies a to cfg, validates it, stores the secrets and writes the
// configuration file.
func Save(path string, cfg *model.AppConfig, secrets SecretWriter, a *Answers) error {
	a.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for key, value := range a.Secrets() {
		if err := secrets.Set(key, value); err != nil {
			return err
		}
	}

	return model.SaveConfig(path, cfg)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
