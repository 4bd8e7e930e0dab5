package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/common/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Operator token management",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an operator API token",
	Long: `Mint a short-lived operator token signed with the profile's admin secret.

The token authenticates admin API calls (events list, get, retry). Use
--save to store it on the profile for subsequent commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		save, _ := cmd.Flags().GetBool("save")

		profileName, _ := cmd.Flags().GetString("profile")
		p, err := cfg.GetProfile(profileName)
		if err != nil {
			return err
		}
		if p.AdminSecret == "" {
			return fmt.Errorf("profile has no admin secret (set with 'paystream profile set --admin-secret')")
		}

		auth := middleware.NewAdminAuth(p.AdminSecret)
		token, err := auth.IssueToken(subject, ttl)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}

		fmt.Println(token)

		if save {
			if err := cfg.SaveAdminToken(profileName, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Token saved to profile")
		}
		return nil
	},
}

func init() {
	tokenCreateCmd.Flags().String("subject", "cli", "token subject")
	tokenCreateCmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	tokenCreateCmd.Flags().Bool("save", false, "store the token on the profile")

	tokenCmd.AddCommand(tokenCreateCmd)
	rootCmd.AddCommand(tokenCmd)
}
