package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/credential"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets stored in the system keyring",
	Long: "Known keys: " + strings.Join(credential.Keys(), ", ") + `.
Environment variables take precedence over stored values.`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a secret, prompting for its value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := checkKey(key); err != nil {
			return err
		}

		var value string
		err := huh.NewInput().
			Title(key).
			EchoMode(huh.EchoModePassword).
			Value(&value).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("value is required")
				}
				return nil
			}).
			Run()
		if err != nil {
			return err
		}

		creds, err := credential.Open()
		if err != nil {
			return err
		}
		if err := creds.Set(key, strings.TrimSpace(value)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", key)
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := checkKey(key); err != nil {
			return err
		}

		creds, err := credential.Open()
		if err != nil {
			return err
		}
		if err := creds.Delete(key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", key)
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}

func checkKey(key string) error {
	if !slices.Contains(credential.Keys(), key) {
		return fmt.Errorf("unknown credential %q (known: %s)", key, strings.Join(credential.Keys(), ", "))
	}
	return nil
}
