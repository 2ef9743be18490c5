package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is
// not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is
// enabled, otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// AppStatus is one row of the status table.
type AppStatus struct {
	Name   string
	Local  string // "-" when not installed
	Remote string // "-" when the server is unreachable
	State  string // "up to date", "update available", "not installed", ...
}

// RenderStatusTable renders the per-app status listing.
func RenderStatusTable(rows []AppStatus) string {
	if len(rows) == 0 {
		return "No apps in catalog.\n"
	}

	sorted := make([]AppStatus, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-8s %-8s %s\n",
		"App", "Local", "Remote", "Status"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")

	for _, row := range sorted {
		state := row.State
		switch row.State {
		case "up to date":
			state = colorize(colorGreen, state)
		case "update available", "not installed":
			state = colorize(colorYellow, state)
		case "error":
			state = colorize(colorRed, state)
		default:
			state = colorize(colorGray, state)
		}

		sb.WriteString(fmt.Sprintf("%-24s %-8s %-8s %s\n",
			truncate(row.Name, 24), row.Local, row.Remote, state))
	}

	return sb.String()
}

// truncate shortens s to max characters, appending "…" when cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
