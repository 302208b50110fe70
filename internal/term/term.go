// Package term resolves whether ANSI color output should be used.
//
// The resolved state is package-level because both the console log writer
// and the banner need it. [Configure] sets it once during startup (from
// logging.New).
package term

import (
	"os"
	"strings"

	"github.com/backmassage/scanmaster/internal/config"
)

var enabled bool

// Configure resolves the color mode and records the result. Call once during
// startup before any output is produced.
func Configure(mode config.ColorMode) {
	enabled = resolve(mode)
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return enabled }

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
