package utils

import "strings"

// IconForStatus maps a connection state or health word to a status icon.
func IconForStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "connected", "healthy":
		return "✅"
	case "connecting":
		return "🔄"
	case "disconnected", "degraded":
		return "⚠️ "
	case "error", "unhealthy":
		return "❌"
	default:
		return "❓"
	}
}
