package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/common/models"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/common/vault"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage encrypted integration credentials",
}

var credsSetCmd = &cobra.Command{
	Use:   "set <platform>",
	Short: "Store an encrypted credential for a platform",
	Long: `Encrypt a credential with the vault master key and store it in the
database. The webhook service reads webhook_secret credentials to verify
incoming deliveries.

The plaintext is taken from --value and never leaves this machine
unencrypted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := args[0]
		value, _ := cmd.Flags().GetString("value")
		credType, _ := cmd.Flags().GetString("type")
		environment, _ := cmd.Flags().GetString("environment")
		expires, _ := cmd.Flags().GetDuration("expires-in")

		if value == "" {
			return fmt.Errorf("--value is required")
		}

		profileName, _ := cmd.Flags().GetString("profile")
		p, err := cfg.GetProfile(profileName)
		if err != nil {
			return err
		}
		if p.DatabaseURL == "" {
			return fmt.Errorf("profile has no database URL (set with 'paystream profile set --database-url')")
		}
		if p.MasterKey == "" {
			return fmt.Errorf("profile has no master key (set with 'paystream profile set --master-key')")
		}

		codec, err := vault.New(p.MasterKey)
		if err != nil {
			return fmt.Errorf("invalid master key: %w", err)
		}

		encrypted, err := codec.Encrypt(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt credential: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := store.NewPostgresStore(ctx, p.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer st.Close()

		cred := &models.IntegrationCredential{
			Platform:       platform,
			CredentialType: credType,
			Environment:    environment,
			EncryptedValue: encrypted,
			Active:         true,
		}
		if expires > 0 {
			t := time.Now().Add(expires)
			cred.ExpiresAt = &t
		}

		if err := st.UpsertCredential(ctx, cred); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}

		fmt.Printf("Credential stored: %s/%s (%s)\n", platform, credType, environment)
		return nil
	},
}

func init() {
	credsSetCmd.Flags().String("value", "", "plaintext credential value")
	credsSetCmd.Flags().String("type", models.CredentialWebhookSecret, "credential type")
	credsSetCmd.Flags().String("environment", "production", "credential environment")
	credsSetCmd.Flags().Duration("expires-in", 0, "credential lifetime (0 = never expires)")

	credsCmd.AddCommand(credsSetCmd)
	rootCmd.AddCommand(credsCmd)
}
