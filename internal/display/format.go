package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatRatio renders output/input as a compression ratio label ("3.2:1").
// Returns "n/a" when either side is unknown.
func FormatRatio(inBytes, outBytes int64) string {
	if inBytes <= 0 || outBytes <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f:1", float64(inBytes)/float64(outBytes))
}

// FormatDuration renders a duration with one decimal of seconds ("4.2s").
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
