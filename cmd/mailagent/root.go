package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/logging"
	"github.com/nhle/mail-agent/internal/model"
)

var rootCmd = &cobra.Command{
	Use:   "mailagent",
	Short: "An email client driven by a language model",
	Long: `mailagent lets a language model act as your email client. Every click is
sent to the model, which lists, reads, sends or trashes mail as needed and
answers with the page to show next.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", model.DefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json); overrides log.format")
}

// loadConfig reads the file named by --config.
func loadConfig(cmd *cobra.Command) (string, *model.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return path, nil, err
	}
	return path, cfg, nil
}

// newLogger builds the logger from the config, with flag overrides.
func newLogger(cmd *cobra.Command, cfg *model.AppConfig) (zerolog.Logger, error) {
	level := cfg.Log.Level
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	format := cfg.Log.Format
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		format = v
	}
	return logging.New(level, format, os.Stderr)
}
