package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paystream-labs/paystream/cli/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "paystream",
	Short: "PayStream CLI",
	Long: `paystream is the command-line interface for the PayStream webhook platform.

Inspect and retry webhook events, manage integration credentials,
mint operator tokens and seed test deliveries from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.paystream/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}
