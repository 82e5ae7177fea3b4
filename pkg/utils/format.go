// Package utils provides small formatting helpers shared across the bot
// and worker.
package utils

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDuration renders a duration of seconds as a compact human string,
// for example "3h 24m" or "45m".
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}

	return fmt.Sprintf("%dm", minutes)
}

// FormatCount renders an integer with thousands separators, for example
// "1,234,567".
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)

	start := 0
	if s[0] == '-' {
		start = 1
	}

	digits := len(s) - start
	if digits <= 3 {
		return s
	}

	var out []byte
	out = append(out, s[:start]...)

	first := digits % 3
	if first == 0 {
		first = 3
	}

	out = append(out, s[start:start+first]...)
	for i := start + first; i < len(s); i += 3 {
		out = append(out, ',')
		out = append(out, s[i:i+3]...)
	}

	return string(out)
}
