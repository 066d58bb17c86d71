// Package output provides terminal output utilities for cubby.
//
// This package includes:
//   - Table rendering for containers, suffix rules, and migration reports
//   - Progress bars and spinners for long-running operations
//   - Human-readable formatting for dates and rule kinds
//
// All table rendering uses ASCII characters and ANSI color codes for terminal
// output. Progress indicators are thread-safe and can be used from multiple
// goroutines.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/cubby/internal/registry"
)

// ANSI color codes keyed to the browser's identity color vocabulary.
const (
	colorReset   = "\033[0m"
	colorBlue    = "\033[34m"
	colorCyan    = "\033[36m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorMagenta = "\033[35m"
	colorGray    = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// identityColor maps a container's color name to an ANSI code.
func identityColor(name string) string {
	switch strings.ToLower(name) {
	case "blue":
		return colorBlue
	case "turquoise":
		return colorCyan
	case "green":
		return colorGreen
	case "yellow", "orange":
		return colorYellow
	case "red":
		return colorRed
	case "pink", "purple":
		return colorMagenta
	default:
		return colorGray
	}
}

// RenderContainerTable renders the container listing. recording
// reports whether a container has an active recording session.
func RenderContainerTable(containers []*registry.Container, recording func(id string) bool) string {
	if len(containers) == 0 {
		return "No containers defined.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-16s %-10s %-6s %-13s %s\n",
		"ID", "Name", "Color", "Rules", "Created", "Status"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	// Columns are padded before colorizing so ANSI codes do not
	// disturb alignment.
	for _, c := range containers {
		status := statusLabel(c, recording != nil && recording(c.ID))
		sb.WriteString(fmt.Sprintf("%-24s %-16s %s %-6d %-13s %s\n",
			truncate(c.ID, 24),
			truncate(c.Name, 16),
			colorize(identityColor(c.Color), fmt.Sprintf("%-10s", c.Color)),
			len(c.Suffixes),
			formatRelativeTime(c.CreatedAt),
			status))
	}

	return sb.String()
}

func statusLabel(c *registry.Container, recording bool) string {
	switch {
	case recording:
		return colorize(colorRed, "● recording")
	case c.Temporary:
		return colorize(colorGray, "temporary")
	default:
		return "permanent"
	}
}

// RenderRuleTable renders one container's suffix rules in wire order.
func RenderRuleTable(c *registry.Container) string {
	if len(c.Suffixes) == 0 {
		return fmt.Sprintf("%s has no rules.\n", c.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %s\n", "Rule", "Kind"))
	sb.WriteString(strings.Repeat("─", 44))
	sb.WriteString("\n")

	for _, s := range c.Suffixes {
		kind := s.Kind.String()
		if !s.Inclusive() {
			kind = colorize(colorRed, kind)
		}
		sb.WriteString(fmt.Sprintf("%-32s %s\n", truncate(s.String(), 32), kind))
	}

	return sb.String()
}

// RenderPSLStatus renders the suffix table status line for the CLI.
func RenderPSLStatus(entries int, lastUpdated time.Time, source string) string {
	return fmt.Sprintf("Public suffix list: %d entries, updated %s (%s)\n",
		entries, formatRelativeTime(lastUpdated), source)
}

// RenderMigrationReport renders per-item migration outcomes.
func RenderMigrationReport(report registry.MigrationReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Imported: %d · Rejected: %d\n",
		report.Imported, report.Rejected))
	for _, f := range report.Failures {
		sb.WriteString(fmt.Sprintf("  %s %s: %s\n",
			colorize(colorRed, "✗"), f.Name, f.Reason))
	}
	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
