package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appvault/internal/launch"
)

var launchCmd = &cobra.Command{
	Use:   "launch <app> [app...]",
	Short: "Decrypt and run installed apps",
	Long: `Decrypt each named app's stored artifact to a throwaway file under
the scratch directory and run it. appvault stays in the foreground
until every launched app has exited so that the decrypted copies are
always cleaned up; plaintext never outlives the process it was
decrypted for.

Launching the same app twice in one invocation is rejected while the
first copy is still running.`,
	Example: `  # Run one app
  appvault launch WorkForce

  # Run two apps side by side; returns when both have exited
  appvault launch WorkForce PersonnelManagement`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLaunch,
}

func runLaunch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	apps, err := e.catalog.Apps(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}
	prefixes := make(map[string]string, len(apps))
	for _, app := range apps {
		prefixes[app.Name] = app.ExecutablePrefix
	}

	registry := launch.NewRegistry(e.store, e.errors, e.cfg.ScratchDir)

	var handles []*launch.Handle
	var failed int
	for _, name := range args {
		prefix, ok := prefixes[name]
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not in the server catalog\n", name)
			failed++
			continue
		}

		handle, err := registry.Launch(name, prefix)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("%s: running (pid %d)\n", name, handle.PID)
		handles = append(handles, handle)
	}

	// Block until every child has exited and its decrypted copy is
	// gone.
	for _, handle := range handles {
		<-handle.Done()
		fmt.Printf("%s: exited\n", handle.App)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d launches failed (details in 'appvault logs')", failed, len(args))
	}
	return nil
}
