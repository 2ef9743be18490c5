package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logsClear bool

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "View or clear the error log",
		Long: `Show every error the update and launch pipelines have recorded,
grouped by date with the newest day first. Entries carry the app name
and the underlying failure detail that the one-line command output
omits.`,
		Example: `  # View errors
  appvault logs

  # Wipe the log
  appvault logs --clear`,
		RunE: runLogs,
	}
)

func init() {
	logsCmd.Flags().BoolVar(&logsClear, "clear", false, "delete all logged errors")
}

func runLogs(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	if logsClear {
		if err := e.errors.Clear(); err != nil {
			return fmt.Errorf("clearing error log: %w", err)
		}
		fmt.Println("Error log cleared.")
		return nil
	}

	entries, err := e.errors.Entries()
	if err != nil {
		return fmt.Errorf("reading error log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No errors have been logged.")
		return nil
	}

	// Group by day, newest day first, preserving append order within
	// a day.
	var days []string
	byDay := make(map[string][]int)
	for i, entry := range entries {
		day, _, _ := strings.Cut(entry.Date, " ")
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], i)
	}

	for i := len(days) - 1; i >= 0; i-- {
		day := days[i]
		fmt.Println(day)
		for _, idx := range byDay[day] {
			entry := entries[idx]
			_, clock, _ := strings.Cut(entry.Date, " ")
			fmt.Printf("  %s  %-24s %s\n", clock, entry.App, entry.Error)
		}
	}
	return nil
}
