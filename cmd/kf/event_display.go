package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/kernelfinder/internal/events"
)

// formatEvent renders a history event on two lines: a headline with icon,
// time, finder and message, then a gray metadata line (empty when there is
// nothing to add).
func formatEvent(event *events.RegistryEvent) string {
	icon := getEventIcon(event)
	severityColor := getSeverityColor(event.Severity)
	typeColor := color.New(color.FgMagenta)

	subject := event.FinderID
	if subject == "" {
		subject = "registry"
	}

	maxMessageLen := 60 - len(subject) - len(string(event.Type))
	line := fmt.Sprintf("%s [%s] %s %s: %s",
		icon,
		event.Timestamp.Local().Format("15:04:05"),
		color.New(color.FgGreen).Sprint(subject),
		typeColor.Sprint(event.Type),
		severityColor.Sprint(truncateString(event.Message, maxMessageLen)),
	)

	metadata := extractEventMetadata(event)
	if metadata == "" {
		return line + "\n"
	}
	return line + "\n  " + color.New(color.FgHiBlack).Sprint(metadata)
}

func getEventIcon(event *events.RegistryEvent) string {
	switch event.Type {
	case events.EventTypeFinderRegistered:
		return "➕"
	case events.EventTypeFinderDeregistered:
		return "➖"
	case events.EventTypeKernelsChanged:
		return "🔄"
	case events.EventTypeKernelsListed:
		return "📋"
	}

	switch event.Severity {
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	case events.SeverityInfo:
		return "ℹ️"
	default:
		return "•"
	}
}

func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata picks the few Data fields worth showing for each event
// type, pipe-separated.
func extractEventMetadata(event *events.RegistryEvent) string {
	if len(event.Data) == 0 {
		return ""
	}

	var fields []string
	switch event.Type {
	case events.EventTypeKernelsListed:
		fields = append(fields,
			fmt.Sprintf("%d kernels", getIntField(event.Data, "kernel_count", 0)),
			fmt.Sprintf("%d finders", getIntField(event.Data, "finder_count", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		)
		if getBoolField(event.Data, "cancelled", false) {
			fields = append(fields, "cancelled")
		}

	case events.EventTypeFinderRegistered, events.EventTypeFinderDeregistered, events.EventTypeFinderFailed:
		fields = append(fields,
			getStringField(event.Data, "finder_kind", ""),
			getStringField(event.Data, "display_name", ""),
			getStringField(event.Data, "error", ""),
		)

	default:
		return ""
	}

	return truncateString(joinFields(fields), 70)
}

func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

// JSON round-trips through the history store turn ints into float64.
func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
