// Package check provides system diagnostics (--check mode) and pre-pipeline
// dependency validation for the external HEIC encoder.
package check

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backmassage/scanmaster/internal/config"
)

// heifEncoder is the libheif CLI encoder used for HEIC output.
const heifEncoder = "heif-enc"

// ErrHeifEncNotFound is returned by CheckDeps when HEIC output is requested
// but the encoder binary is missing from PATH.
var ErrHeifEncNotFound = errors.New("heif-enc not found on PATH (install libheif tools, or disable --heic)")

// CheckDeps fails fast before a run if a required external tool is missing.
// TIFF and JPEG output are handled in-process and need nothing.
func CheckDeps(cfg *config.Config) error {
	if !cfg.CreateHEIC {
		return nil
	}
	if _, err := exec.LookPath(heifEncoder); err != nil {
		return ErrHeifEncNotFound
	}
	return nil
}

// RunCheck runs the interactive --check flow: reports availability of the
// HEIC encoder and the in-process codecs. Informational only; returns false
// when HEIC output would be unavailable.
func RunCheck(cfg *config.Config, log zerolog.Logger) bool {
	log.Info().Msg("=== System Check ===")
	log.Info().Msg("TIFF decode/encode: built in (LZW, Deflate)")
	log.Info().Msg("JPEG encode: built in")

	path, err := exec.LookPath(heifEncoder)
	if err != nil {
		log.Warn().Msg("HEIC encode: heif-enc not found on PATH")
		return false
	}

	version := heifEncVersion(path)
	log.Info().Str("path", path).Str("version", version).Msg("HEIC encode: heif-enc available")
	if cfg.HEICLossless() {
		log.Info().Msg("HEIC quality: lossless (falls back to q95 if the encoder rejects lossless)")
	}
	return true
}

// heifEncVersion probes the encoder version line; "unknown" on any failure.
func heifEncVersion(path string) string {
	var out bytes.Buffer
	cmd := exec.Command(path, "--version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
	if line == "" {
		return "unknown"
	}
	return line
}
