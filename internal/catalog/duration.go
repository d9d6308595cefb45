package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDurationSeconds converts a display duration into whole seconds. It
// accepts "M:SS" or "MM:SS" forms as well as a bare numeric string that is
// treated as already being seconds. Anything else reports ok=false rather
// than an error: duration is advisory data.
func ParseDurationSeconds(raw string) (int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	if !strings.Contains(trimmed, ":") {
		seconds, err := strconv.Atoi(trimmed)
		if err != nil || seconds < 0 {
			return 0, false
		}
		return seconds, true
	}

	parts := strings.SplitN(trimmed, ":", 2)
	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, false
	}
	return minutes*60 + seconds, true
}

// FormatDuration renders whole seconds as "m:ss". Negative input yields the
// empty string, which is the display form for an absent duration.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatDurationPtr renders an optional seconds value, treating nil as absent.
func FormatDurationPtr(seconds *int) string {
	if seconds == nil {
		return ""
	}
	return FormatDuration(*seconds)
}
