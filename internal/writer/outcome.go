// Package writer converts a source scan into the configured output formats.
// Every attempt produces exactly one Outcome; failures are recorded in the
// outcome and never abort the surrounding group.
package writer

import "time"

// Action labels for outcomes, stable identifiers used in the batch report.
const (
	ActionTIFFLZW         = "tiff_lzw"
	ActionTIFFDeflate     = "tiff_deflate"
	ActionHEIC            = "heic"
	ActionJPG             = "jpg"
	ActionArchive         = "archive"
	ActionArchiveBackside = "archive_backside"
	ActionArchiveRejected = "archive_rejected"
)

// Outcome records one write or move attempt.
type Outcome struct {
	Source           string   `json:"source"`
	Action           string   `json:"action"`
	Output           string   `json:"output,omitempty"`
	Success          bool     `json:"success"`
	Simulated        bool     `json:"simulated,omitempty"`
	SizeBytes        int64    `json:"size_bytes,omitempty"`
	SourceSizeBytes  int64    `json:"source_size_bytes,omitempty"`
	CompressionRatio float64  `json:"compression_ratio,omitempty"`
	Verified         bool     `json:"verified,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
	Error            string   `json:"error,omitempty"`
}

func (o *Outcome) warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

func (o *Outcome) fail(err error) {
	o.Success = false
	o.Error = err.Error()
}

func (o *Outcome) finish(start time.Time) {
	o.DurationSeconds = time.Since(start).Seconds()
}

func ratio(sourceBytes, outputBytes int64) float64 {
	if outputBytes <= 0 {
		return 0
	}
	return float64(sourceBytes) / float64(outputBytes)
}
