package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/ui/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the mailbox and store credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		creds, err := credential.Open()
		if err != nil {
			return err
		}

		saved, err := setup.Run(path, cfg, creds)
		if err != nil {
			return err
		}
		if !saved {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled, nothing was changed.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
