package writer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/imaging"
	"github.com/backmassage/scanmaster/internal/tiffio"
)

// Converter produces the configured output formats for one source file at a
// time. It is stateless apart from configuration and safe to reuse across a
// batch.
type Converter struct {
	cfg *config.Config
	log zerolog.Logger
}

func New(cfg *config.Config) *Converter {
	return &Converter{
		cfg: cfg,
		log: log.Logger.With().Str("component", "writer").Logger(),
	}
}

// ConvertTIFF re-encodes src as a losslessly compressed TIFF at dest,
// carrying sanitized metadata tags. If the tag-preserving save fails, one
// metadata-stripped retry runs before the outcome reports failure.
func (c *Converter) ConvertTIFF(ctx context.Context, src, dest string) Outcome {
	start := time.Now()
	action := ActionTIFFLZW
	comp := tiffio.CompressionLZW
	if c.cfg.Compression == config.CompressionDeflate {
		action = ActionTIFFDeflate
		comp = tiffio.CompressionDeflate
	}
	out := Outcome{Source: src, Action: action, Output: dest}
	out.SourceSizeBytes = fileSize(src)

	if c.cfg.DryRun {
		out.Success = true
		out.Simulated = true
		out.finish(start)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.fail(err)
		out.finish(start)
		return out
	}

	fields := c.sanitizedFields(src, &out)

	img, err := imaging.Decode(src)
	if err != nil {
		out.fail(fmt.Errorf("decode source: %w", err))
		out.finish(start)
		return out
	}

	encodeTo := func(fields []tiffio.Field) error {
		return writeAtomic(dest, func(f *os.File) error {
			return tiffio.Encode(f, img, &tiffio.Options{Compression: comp, Fields: fields})
		})
	}

	err = encodeTo(fields)
	if err != nil && len(fields) > 0 {
		c.log.Warn().Str("source", src).Err(err).Msg("tag-preserving save failed, retrying stripped")
		out.warn("metadata carry-over failed, saved without tags: " + err.Error())
		err = encodeTo(nil)
	}
	if err != nil {
		out.fail(err)
		out.finish(start)
		return out
	}

	out.Success = true
	out.SizeBytes = fileSize(dest)
	out.CompressionRatio = ratio(out.SourceSizeBytes, out.SizeBytes)
	c.verify(dest, &out)
	out.finish(start)
	return out
}

// sanitizedFields extracts carry-over metadata from the source IFD. A parse
// failure only costs the tags, never the conversion.
func (c *Converter) sanitizedFields(src string, out *Outcome) []tiffio.Field {
	f, err := os.Open(src)
	if err != nil {
		out.warn("metadata skipped: " + err.Error())
		return nil
	}
	defer f.Close()

	fields, err := tiffio.SanitizeTags(f)
	if err != nil {
		c.log.Debug().Str("source", src).Err(err).Msg("source tags unreadable, continuing without")
		out.warn("metadata skipped: " + err.Error())
		return nil
	}
	return fields
}

// verify re-decodes the written file when verification is enabled. Failures
// downgrade to a warning on the (already successful) outcome.
func (c *Converter) verify(dest string, out *Outcome) {
	if !c.cfg.Verify {
		return
	}
	if _, err := imaging.Decode(dest); err != nil {
		out.warn("verification failed: " + err.Error())
		return
	}
	out.Verified = true
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}
