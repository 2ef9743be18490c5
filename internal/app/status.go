package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appvault/internal/catalog"
	"github.com/blackwell-systems/appvault/internal/output"
	"github.com/blackwell-systems/appvault/internal/store"
	"github.com/blackwell-systems/appvault/internal/version"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local and remote versions for every catalog app",
	Long: `Compare the locally installed artifact of each catalog app with the
latest version the server offers.

An app shows "update available" when the server has a newer version,
"not installed" when no local artifact exists, and "up to date"
otherwise. A server that reports an older version than the local
install still shows "up to date"; appvault never downgrades.`,
	Example: `  appvault status
  appvault status --server http://apps.internal:5000`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	apps, err := e.catalog.Apps(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}

	rows := make([]output.AppStatus, 0, len(apps))
	for _, app := range apps {
		row := output.AppStatus{Name: app.Name, Local: "-", Remote: "-"}

		var local *version.Version
		rec, err := e.store.Current(app.Name, app.ExecutablePrefix)
		switch {
		case err == nil:
			local = &rec.Version
			row.Local = rec.Version.String()
		case !errors.Is(err, store.ErrNoArtifact):
			return err
		}

		remote, err := e.catalog.LatestVersion(cmd.Context(), app.Name)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			row.State = "no releases"
		case err != nil:
			row.State = "error"
		default:
			row.Remote = remote.String()
			switch {
			case local == nil:
				row.State = "not installed"
			case version.Less(*local, remote):
				row.State = "update available"
			default:
				row.State = "up to date"
			}
		}

		rows = append(rows, row)
	}

	fmt.Print(output.RenderStatusTable(rows))
	return nil
}
