package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/common/vault"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a vault master key",
	Long: `Generate a fresh 256-bit master key for the credential vault.

Store the key in the service configuration (vault.master_key) and in the
CLI profile (--master-key). Rotating the key requires re-encrypting every
stored credential.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
