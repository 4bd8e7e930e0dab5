package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/cli/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage deployment profiles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		webhookURL, _ := cmd.Flags().GetString("webhook-url")
		adminURL, _ := cmd.Flags().GetString("admin-url")
		adminSecret, _ := cmd.Flags().GetString("admin-secret")
		databaseURL, _ := cmd.Flags().GetString("database-url")
		masterKey, _ := cmd.Flags().GetString("master-key")

		// Start from the existing profile so partial updates keep the rest.
		p, err := cfg.GetProfile(name)
		if err != nil {
			p = &config.Profile{}
		}
		if webhookURL != "" {
			p.WebhookURL = webhookURL
		}
		if adminURL != "" {
			p.AdminURL = adminURL
		}
		if adminSecret != "" {
			p.AdminSecret = adminSecret
		}
		if databaseURL != "" {
			p.DatabaseURL = databaseURL
		}
		if masterKey != "" {
			p.MasterKey = masterKey
		}

		if err := cfg.SetProfile(name, p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		fmt.Printf("Profile %q saved\n", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Profiles) == 0 {
			fmt.Println("No profiles configured")
			return nil
		}
		for name, p := range cfg.Profiles {
			marker := " "
			if name == cfg.CurrentProfile {
				marker = "*"
			}
			fmt.Printf("%s %s\twebhook=%s admin=%s\n", marker, name, p.WebhookURL, p.AdminURL)
		}
		return nil
	},
}

func init() {
	profileSetCmd.Flags().String("webhook-url", "", "webhook service base URL")
	profileSetCmd.Flags().String("admin-url", "", "operator API base URL")
	profileSetCmd.Flags().String("admin-secret", "", "operator token signing secret")
	profileSetCmd.Flags().String("database-url", "", "postgres URL for credential management")
	profileSetCmd.Flags().String("master-key", "", "vault master key (hex)")

	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileListCmd)
	rootCmd.AddCommand(profileCmd)
}
