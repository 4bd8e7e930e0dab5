package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/cli/internal/client"
	"github.com/paystream-labs/paystream/cli/internal/config"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and retry webhook events",
}

func adminClientFromFlags(cmd *cobra.Command) (*client.AdminClient, *config.Profile, error) {
	profileName, _ := cmd.Flags().GetString("profile")
	p, err := cfg.GetProfile(profileName)
	if err != nil {
		return nil, nil, err
	}
	if p.AdminURL == "" {
		return nil, nil, fmt.Errorf("profile has no admin URL (set with 'paystream profile set --admin-url')")
	}
	return client.NewAdminClient(p.AdminURL), p, nil
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook events",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, p, err := adminClientFromFlags(cmd)
		if err != nil {
			return err
		}

		resp, err := c.ListEvents(p.AdminToken, provider, status, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROVIDER\tTYPE\tSTATUS\tRETRIES\tRECEIVED")
		for _, e := range resp.Events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.Provider, e.EventType, e.Status, e.RetryCount,
				e.ReceivedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()
		fmt.Printf("\n%d of %d events\n", len(resp.Events), resp.Total)
		return nil
	},
}

var eventsGetCmd = &cobra.Command{
	Use:   "get <event-id>",
	Short: "Show one webhook event including its payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := adminClientFromFlags(cmd)
		if err != nil {
			return err
		}

		event, err := c.GetEvent(p.AdminToken, args[0])
		if err != nil {
			return fmt.Errorf("failed to get event: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(event)
	},
}

var eventsRetryCmd = &cobra.Command{
	Use:   "retry <event-id>",
	Short: "Re-enqueue a failed event for processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := adminClientFromFlags(cmd)
		if err != nil {
			return err
		}

		if err := c.RetryEvent(p.AdminToken, args[0]); err != nil {
			return fmt.Errorf("failed to retry event: %w", err)
		}
		fmt.Printf("Event %s re-enqueued\n", args[0])
		return nil
	},
}

func init() {
	eventsListCmd.Flags().String("provider", "", "filter by provider")
	eventsListCmd.Flags().String("status", "", "filter by status (pending, processing, processed, failed)")
	eventsListCmd.Flags().Int("limit", 50, "page size")
	eventsListCmd.Flags().Int("offset", 0, "page offset")
	eventsListCmd.Flags().Bool("json", false, "output raw JSON")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsGetCmd)
	eventsCmd.AddCommand(eventsRetryCmd)
	rootCmd.AddCommand(eventsCmd)
}
