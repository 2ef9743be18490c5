package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appvault/internal/catalog"
	"github.com/blackwell-systems/appvault/internal/output"
	"github.com/blackwell-systems/appvault/internal/update"
)

var (
	updateAll bool

	updateCmd = &cobra.Command{
		Use:   "update [app...]",
		Short: "Download and install app updates",
		Long: `Check each named app against the catalog server and install the
latest version if it is newer than the local artifact (or if nothing
is installed yet).

The downloaded executable is encrypted before it touches the artifact
directory; the store only ever holds ciphertext. Installation is
atomic: a crash mid-update leaves the previous version intact.

Failures are recorded in the error log (see 'appvault logs'). Nothing
is retried automatically; run the command again to retry.`,
		Example: `  # Update one app
  appvault update WorkForce

  # Update everything the server offers
  appvault update --all`,
		RunE: runUpdate,
	}
)

func init() {
	updateCmd.Flags().BoolVar(&updateAll, "all", false, "update every app in the catalog")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if !updateAll && len(args) == 0 {
		return fmt.Errorf("name at least one app, or pass --all")
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}

	targets, err := resolveTargets(cmd.Context(), e, args)
	if err != nil {
		return err
	}

	pipeline := update.New(e.store, e.catalog, e.errors)

	var failed int
	for _, target := range targets {
		if err := updateOne(cmd.Context(), pipeline, target); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", target.Name, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d updates failed (details in 'appvault logs')", failed, len(targets))
	}
	return nil
}

// resolveTargets maps the command line to catalog entries. With
// --all, every app the server offers is a target.
func resolveTargets(ctx context.Context, e *env, args []string) ([]catalog.AppInfo, error) {
	apps, err := e.catalog.Apps(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}

	if updateAll {
		return apps, nil
	}

	byName := make(map[string]catalog.AppInfo, len(apps))
	for _, app := range apps {
		byName[app.Name] = app
	}

	targets := make([]catalog.AppInfo, 0, len(args))
	for _, name := range args {
		app, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("app %q is not in the server catalog", name)
		}
		targets = append(targets, app)
	}
	return targets, nil
}

// updateOne runs the pipeline for one app, rendering download
// progress as it streams.
func updateOne(ctx context.Context, pipeline *update.Pipeline, target catalog.AppInfo) error {
	bar := output.NewDownloadBar(target.Name)

	result := pipeline.CheckAndUpdate(ctx, target.Name, target.ExecutablePrefix, bar.Update)

	switch result.State {
	case update.UpToDate:
		bar.Abort()
		fmt.Printf("%s: up to date (%s)\n", target.Name, result.Remote)
		return nil
	case update.Installed:
		bar.Finish()
		fmt.Printf("%s: installed %s\n", target.Name, result.Remote)
		return nil
	default:
		bar.Abort()
		return result.Err
	}
}
