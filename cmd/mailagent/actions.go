package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/store"
	"github.com/nhle/mail-agent/internal/theme"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Show the journal of mailbox actions taken by the agent",
	RunE:  runActions,
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.Flags().String("session", "", "Only actions of this session")
	actionsCmd.Flags().String("kind", "", "Only actions of this kind (ListMail, ReadMail, SendMail, DeleteMail)")
	actionsCmd.Flags().Int("limit", store.DefaultActionLimit, "Maximum number of actions to show")
}

func runActions(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No journal at %s yet.\n", cfg.Store.Path)
		return nil
	}

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening journal %s: %w", filepath.Clean(cfg.Store.Path), err)
	}
	defer s.Close()

	filter := store.ActionFilter{}
	filter.SessionID, _ = cmd.Flags().GetString("session")
	filter.Kind, _ = cmd.Flags().GetString("kind")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	records, err := s.ListActions(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No actions recorded.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderActions(records))
	return nil
}

func renderActions(records []store.ActionRecord) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("TIME", "SESSION", "KIND", "TARGET", "RESULT", "MS")

	for _, r := range records {
		result := theme.OutcomeStyle(r.OK).Render(r.Outcome)
		t.Row(
			r.CreatedAt.Local().Format(time.DateTime),
			shortID(r.SessionID),
			r.Kind,
			r.Target,
			result,
			strconv.FormatInt(r.DurationMS, 10),
		)
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
