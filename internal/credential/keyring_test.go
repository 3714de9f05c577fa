package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(env map[string]string) *Store {
	s := NewStore(keyring.NewArrayKeyring(nil))
	s.getenv = func(name string) string { return env[name] }
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(nil)

	require.NoError(t, s.Set(KeyMailPassword, "hunter2"))

	got, err := s.Get(KeyMailPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, s.Delete(KeyMailPassword))

	_, err = s.Get(KeyMailPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePrefersEnvironment(t *testing.T) {
	s := newTestStore(map[string]string{"ANTHROPIC_API_KEY": "from-env"})
	require.NoError(t, s.Set(KeyAnthropicAPIKey, "from-keyring"))

	got, err := s.Resolve(KeyAnthropicAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestResolveFallsBackToKeyring(t *testing.T) {
	s := newTestStore(nil)
	require.NoError(t, s.Set(KeyGoogleClientSecret, "secret"))

	got, err := s.Resolve(KeyGoogleClientSecret)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}

func TestResolveMissing(t *testing.T) {
	s := newTestStore(nil)

	_, err := s.Resolve(KeyAnthropicAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEveryKeyHasEnvVar(t *testing.T) {
	for _, key := range Keys() {
		assert.NotEmpty(t, EnvVar(key), key)
	}
}
