package utils

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes converts a byte count to binary units ("1.5 KiB").
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatAge renders t relative to now ("3 minutes ago"). A zero time is
// reported as "unknown".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Preview returns the first line of s, cut to at most width runes with an
// ellipsis.
func Preview(s string, width int) string {
	line, _, more := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if width > 0 && len(r) > width {
		return string(r[:max(width-1, 0)]) + "…"
	}
	if more {
		return line + " …"
	}
	return line
}
