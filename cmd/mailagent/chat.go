package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/agent"
	"github.com/nhle/mail-agent/internal/app"
	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/logging"
	"github.com/nhle/mail-agent/internal/model"
	"github.com/nhle/mail-agent/internal/ui/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Use the agent from the terminal",
	Long: `Opens a terminal client. Each line you enter is sent as a click on the
current page and the page the model renders is shown as text. Works with the
imap and memory providers; gmail needs the browser sign-in of "serve".`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("demo", false, "Use the in-memory demo mailbox regardless of configuration")
}

func runChat(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if demo, _ := cmd.Flags().GetBool("demo"); demo {
		cfg.Mailbox.Provider = model.ProviderMemory
	}
	if cfg.Mailbox.Provider == model.ProviderGmail {
		return fmt.Errorf("chat does not support the gmail provider; run %q or use --demo", "mailagent serve")
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := filepath.Join(filepath.Dir(cfg.Store.Path), "chat.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	log, err := logging.New(cfg.Log.Level, logging.FormatJSON, logFile)
	if err != nil {
		return err
	}

	creds, err := credential.Open()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, creds, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, _ := a.Sessions.GetOrCreate("")
	ctx := agent.WithSessionID(log.With().Str("session", sess.ID).Logger().WithContext(cmd.Context()), sess.ID)

	mbox, err := a.Mailboxes.ForSession(ctx, sess)
	if err != nil {
		return err
	}

	p := tea.NewProgram(chat.New(ctx, a.Agent, sess.Conversation, mbox), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
