// Package config holds runtime configuration: defaults, YAML file loading,
// and validation. Defaults match the legacy converter behavior for parity.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// --- Enum types for validated string fields ---

// Compression selects the lossless TIFF re-encode scheme.
type Compression string

const (
	CompressionLZW     Compression = "lzw"     // Dictionary-based (default).
	CompressionDeflate Compression = "deflate" // zlib/deflate strips.
)

// Policy controls how the front variant of a scan group is chosen.
type Policy string

const (
	PolicyAuto       Policy = "auto"        // Quality-metric scoring (default).
	PolicyPreferBase Policy = "prefer_base" // Always the un-augmented scan when present.
	PolicyPreferA    Policy = "prefer_a"    // Always the augmented (_a) scan when present.
	PolicyNone       Policy = "none"        // No selection; every front converts.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Output sub-directory and report names, created under the source directory.
const (
	DirTIFF     = "converted_tiff"
	DirHEIC     = "converted_heic"
	DirJPG      = "converted_jpg"
	DirArchive  = "originals_archive"
	DirBackside = "backside"          // Nested under DirArchive.
	DirRejected = "rejected_variants" // Nested under DirArchive; smart-archive only.
	ReportName  = "conversion_report.json"
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// optionally layered with a YAML file via [LoadFile], and then mutated by the
// CLI before being passed (by pointer) to packages that need it.
type Config struct {
	// Source directory containing scanner TIFFs (root only, not recursive).
	InputDir string `yaml:"input_dir"`

	// Output formats.
	CreateTIFF  bool        `yaml:"create_tiff"`  // Default: true.
	Compression Compression `yaml:"compression"`  // Default: "lzw".
	CreateHEIC  bool        `yaml:"create_heic"`  // Default: false.
	HEICQuality int         `yaml:"heic_quality"` // -1 = lossless (default) .. 100.
	CreateJPG   bool        `yaml:"create_jpg"`   // Default: false.
	JPGQuality  int         `yaml:"jpg_quality"`  // Default: 90. Range 1..100.

	// Variant handling.
	VariantPolicy       Policy  `yaml:"variant_policy"`       // Default: "auto".
	SmartConversion     bool    `yaml:"smart_conversion"`     // Default: true. Off = convert every front.
	SmartArchive        bool    `yaml:"smart_archive"`        // Default: true. Rejected fronts go to a subtree.
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // Default: 0.98. Empirical constant.
	ScoreGap            float64 `yaml:"score_gap"`            // Default: 0.05. Ambiguity margin.

	// Behavior flags.
	DryRun bool `yaml:"dry_run"`
	Verify bool `yaml:"verify"` // Default: true. Re-decode outputs after write.

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`    // Default: "auto".
	LogFile   string    `yaml:"log_file"` // Optional rolling log file path.
	CheckOnly bool      `yaml:"-"`        // Run --check diagnostics and exit.
}

// DefaultConfig returns a Config with all defaults matching the legacy
// converter. Used as the base before file and CLI overrides apply.
func DefaultConfig() Config {
	return Config{
		CreateTIFF:          true,
		Compression:         CompressionLZW,
		CreateHEIC:          false,
		HEICQuality:         -1,
		CreateJPG:           false,
		JPGQuality:          90,
		VariantPolicy:       PolicyAuto,
		SmartConversion:     true,
		SmartArchive:        true,
		SimilarityThreshold: 0.98,
		ScoreGap:            0.05,
		DryRun:              false,
		Verify:              true,
		Verbose:             false,
		ColorMode:           ColorAuto,
		CheckOnly:           false,
	}
}

// LoadFile layers YAML settings from path onto cfg. Unknown keys are
// rejected so typos in a config file surface immediately.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields, quality ranges, and threshold ranges. When not
// in CheckOnly mode it also requires a source directory and at least one
// enabled output format.
func (c *Config) Validate() error {
	switch c.Compression {
	case CompressionLZW, CompressionDeflate:
		// valid
	default:
		return errors.New("invalid compression (use 'lzw' or 'deflate')")
	}

	switch c.VariantPolicy {
	case PolicyAuto, PolicyPreferBase, PolicyPreferA, PolicyNone:
		// valid
	default:
		return errors.New("invalid variant policy (use 'auto', 'prefer_base', 'prefer_a' or 'none')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.HEICQuality < -1 || c.HEICQuality > 100 {
		return fmt.Errorf("invalid HEIC quality %d (use -1 for lossless, or 0-100)", c.HEICQuality)
	}
	if c.JPGQuality < 1 || c.JPGQuality > 100 {
		return fmt.Errorf("invalid JPEG quality %d (use 1-100)", c.JPGQuality)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("invalid similarity threshold %g (use 0.0-1.0)", c.SimilarityThreshold)
	}
	if c.ScoreGap < 0 || c.ScoreGap > 1 {
		return fmt.Errorf("invalid score gap %g (use 0.0-1.0)", c.ScoreGap)
	}

	if c.CheckOnly {
		return nil
	}
	if c.InputDir == "" {
		return errors.New("need a source directory")
	}
	if !c.CreateTIFF && !c.CreateHEIC && !c.CreateJPG {
		return errors.New("no output format enabled (use --tiff, --heic or --jpg)")
	}
	return nil
}

// --- Derived paths ---

// TIFFOutputDir returns the directory for compressed TIFF outputs.
func (c *Config) TIFFOutputDir() string { return filepath.Join(c.InputDir, DirTIFF) }

// HEICOutputDir returns the directory for HEIC outputs.
func (c *Config) HEICOutputDir() string { return filepath.Join(c.InputDir, DirHEIC) }

// JPGOutputDir returns the directory for JPEG outputs.
func (c *Config) JPGOutputDir() string { return filepath.Join(c.InputDir, DirJPG) }

// ArchiveDir returns the root of the originals archive tree.
func (c *Config) ArchiveDir() string { return filepath.Join(c.InputDir, DirArchive) }

// ReportPath returns the location of the JSON run report.
func (c *Config) ReportPath() string { return filepath.Join(c.InputDir, ReportName) }

// HEICLossless reports whether the lossless sentinel quality is configured.
func (c *Config) HEICLossless() bool { return c.HEICQuality == -1 }
