// Package output provides terminal output utilities: tables for the
// event-listing commands, a spinner for remote operations, and
// human-readable formatting for dates. Table rendering uses ASCII
// characters and ANSI color codes; color is suppressed on non-TTY output
// and when NO_COLOR is set.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/unitreplay/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
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

// RenderEventList renders the recorded events as a table, one row per
// committed event, newest last. Row order is the replay index order.
func RenderEventList(events []store.EventSummary) string {
	if len(events) == 0 {
		return "No recorded events.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-6s %-28s %s\n", "Index", "Event", "Recorded"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")

	for _, ev := range events {
		sb.WriteString(fmt.Sprintf("%-6d %-28s %s\n",
			ev.Index,
			truncate(ev.Name, 28),
			formatRelativeTime(ev.RecordedAt)))
	}
	return sb.String()
}

// RenderEventDetail renders one event record: the header line, the call
// table, and the snapshotted file paths. With verbose set, recorded results
// and the captured environment are included.
func RenderEventDetail(rec *store.EventRecord, verbose bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Event %d: %s (%s)\n",
		rec.Index,
		colorize(colorGreen, rec.Name),
		rec.RecordedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("%d calls, %d file snapshots, %d environment variables\n",
		len(rec.Calls), len(rec.Files), len(rec.Environment)))

	if len(rec.Calls) > 0 {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-4s %-24s %s\n", "#", "Tool", "Args"))
		sb.WriteString(strings.Repeat("─", 60))
		sb.WriteString("\n")
		for _, call := range rec.Calls {
			sb.WriteString(fmt.Sprintf("%-4d %-24s %s\n",
				call.Index,
				string(call.Signature.Op),
				truncate(strings.Join(call.Signature.Args, " "), 40)))
			if verbose {
				sb.WriteString(fmt.Sprintf("     %s\n",
					colorize(colorGray, compactJSON(call.Result))))
			}
		}
	}

	if len(rec.Files) > 0 {
		sb.WriteString("\nTracked files:\n")
		for _, p := range sortedPaths(rec.Files) {
			sb.WriteString(fmt.Sprintf("  %s (%d bytes)\n", p, len(rec.Files[p])))
		}
	}

	if verbose && len(rec.Environment) > 0 {
		sb.WriteString("\nEnvironment:\n")
		keys := make([]string, 0, len(rec.Environment))
		for k := range rec.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s=%s\n", k, rec.Environment[k]))
		}
	}
	return sb.String()
}

// RenderReplaySummary renders the outcome line(s) printed after a replay.
func RenderReplaySummary(eventName string, writes int, remaining int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Replayed %s: %d writes diverted to scratch\n",
		colorize(colorGreen, eventName), writes))
	if remaining > 0 {
		sb.WriteString(colorize(colorYellow,
			fmt.Sprintf("Warning: %d recorded calls were never consumed\n", remaining)))
	}
	return sb.String()
}

func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// compactJSON re-renders raw JSON without whitespace, falling back to the
// input verbatim when it does not compact cleanly.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// formatRelativeTime formats a timestamp as a human-readable relative time.
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)
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
	default:
		return t.Format("2006-01-02")
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
