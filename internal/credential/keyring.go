package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "mailagent"

// Keys under which secrets are stored.
const (
	KeyAnthropicAPIKey    = "anthropic-api-key"
	KeyMailPassword       = "mail-password"
	KeyGoogleClientSecret = "google-client-secret"
)

// envVars maps a key to the environment variable that overrides it.
var envVars = map[string]string{
	KeyAnthropicAPIKey:    "ANTHROPIC_API_KEY",
	KeyMailPassword:       "MAILAGENT_MAIL_PASSWORD",
	KeyGoogleClientSecret: "MAILAGENT_GOOGLE_CLIENT_SECRET",
}

// ErrNotFound is returned when a credential is neither in the
// environment nor in the keyring.
var ErrNotFound = errors.New("credential not found")

// Keys lists every known credential key.
func Keys() []string {
	return []string{KeyAnthropicAPIKey, KeyMailPassword, KeyGoogleClientSecret}
}

// EnvVar returns the environment variable overriding key, if any.
func EnvVar(key string) string {
	return envVars[key]
}

// Store reads and writes credentials in a keyring.
type Store struct {
	ring   keyring.Keyring
	getenv func(string) string
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring, getenv: os.Getenv}
}

// Open opens the system keyring, falling back to an encrypted file under
// ~/.config/mailagent/credentials.
func Open() (*Store, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewStore(ring), nil
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	fileDir := "~/.config/mailagent/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		fileDir = filepath.Join(home, ".config", "mailagent", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailagent-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the keyring.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Resolve returns the credential for key, preferring its environment
// variable over the keyring.
func (s *Store) Resolve(key string) (string, error) {
	if name := envVars[key]; name != "" {
		if v := s.getenv(name); v != "" {
			return v, nil
		}
	}
	return s.Get(key)
}

// Set stores a credential value by key in the keyring.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
