package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string

	// RootCmd is the root command for appvault
	RootCmd = &cobra.Command{
		Use:   "appvault",
		Short: "Encrypted app distribution client",
		Long: `appvault keeps native apps up to date from a catalog server and
stores them encrypted at rest. Launching an app decrypts it to a
throwaway file that is removed as soon as the app exits.

Quick Start:
  1. appvault status            # see what the server offers
  2. appvault update --all      # download and install everything
  3. appvault launch WorkForce  # run an app

Examples:
  # Check local vs remote versions
  appvault status

  # Update one app with a progress bar
  appvault update WorkForce

  # Launch and wait for exit
  appvault launch WorkForce

  # Inspect and clear the error log
  appvault logs
  appvault logs --clear`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("appvault: encrypted app distribution client")
			fmt.Println()
			fmt.Println("Run 'appvault status' to see available apps.")
			fmt.Println("Run 'appvault --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.appvault/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "catalog server URL (overrides config)")

	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(launchCmd)
	RootCmd.AddCommand(appsCmd)
	RootCmd.AddCommand(logsCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
