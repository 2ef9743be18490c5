package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the apps the catalog server offers",
	Example: `  appvault apps
  appvault apps --server http://apps.internal:5000`,
	RunE: runApps,
}

func runApps(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	apps, err := e.catalog.Apps(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}

	if len(apps) == 0 {
		fmt.Println("The server catalog is empty.")
		return nil
	}

	for _, app := range apps {
		fmt.Printf("%-24s prefix=%s icon=%s\n", app.Name, app.ExecutablePrefix, app.Icon)
	}
	return nil
}
