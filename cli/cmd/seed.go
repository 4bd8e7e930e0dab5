package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/cli/internal/client"
	"github.com/paystream-labs/paystream/cli/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send fake signed webhook deliveries to a running service",
	Long: `Generate realistic provider payloads, sign them with the given secret and
deliver them to the webhook service. Useful for integration testing and for
exercising the processing pipeline end to end.

The secret must match the webhook_secret credential configured for the
provider, or every delivery will be rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		secret, _ := cmd.Flags().GetString("secret")
		count, _ := cmd.Flags().GetInt("count")
		interval, _ := cmd.Flags().GetDuration("interval")

		if secret == "" {
			return fmt.Errorf("--secret is required")
		}

		profileName, _ := cmd.Flags().GetString("profile")
		p, err := cfg.GetProfile(profileName)
		if err != nil {
			return err
		}
		if p.WebhookURL == "" {
			return fmt.Errorf("profile has no webhook URL (set with 'paystream profile set --webhook-url')")
		}

		s := seeder.New(seeder.Config{
			Provider: provider,
			Secret:   secret,
			Count:    count,
			Interval: interval,
		}, client.NewWebhookClient(p.WebhookURL))

		fmt.Printf("Seeding %d %s deliveries to %s...\n", count, provider, p.WebhookURL)
		result, err := s.Run()
		if err != nil {
			return err
		}

		fmt.Printf("Sent: %d, Failed: %d\n", result.Sent, result.Failed)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("provider", "stripe", "provider to impersonate (stripe, cartpanda, hotmart)")
	seedCmd.Flags().String("secret", "", "signing secret matching the configured credential")
	seedCmd.Flags().Int("count", 10, "number of deliveries to send")
	seedCmd.Flags().Duration("interval", 100*time.Millisecond, "pause between deliveries")

	rootCmd.AddCommand(seedCmd)
}
