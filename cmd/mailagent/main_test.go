package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-agent/internal/store"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "setup", "credential", "actions"} {
		assert.True(t, names[want], want)
	}
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, checkKey("anthropic-api-key"))
	assert.Error(t, checkKey("jira-token"))
}

func TestRenderActions(t *testing.T) {
	out := renderActions([]store.ActionRecord{{
		SessionID:  "0f8fad5b-d9cb-469f-a165-70867728950e",
		Kind:       "ReadMail",
		Target:     "18c2",
		OK:         true,
		Outcome:    "ok",
		DurationMS: 42,
		CreatedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}})

	assert.Contains(t, out, "ReadMail")
	assert.Contains(t, out, "0f8fad5b")
	assert.NotContains(t, out, "0f8fad5b-d9cb")
	assert.Contains(t, out, "42")
}

func TestActionsWithoutJournal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MAILAGENT_STORE_PATH", filepath.Join(dir, "journal.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"actions", "--config", filepath.Join(dir, "config.yaml")})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "No journal at")
}
