package writer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/backmassage/scanmaster/internal/imaging"
)

// fallbackQuality replaces a lossless request the encoder refuses to honor.
const fallbackQuality = 95

// ConvertHEIC encodes src as HEIC at dest via heif-enc. The encoder is tried
// on the source file first; when it rejects the input (scanner TIFFs with
// exotic sample layouts are common), a normalized 8-bit PNG intermediate is
// fed instead, and a refused lossless request degrades to numeric quality.
func (c *Converter) ConvertHEIC(ctx context.Context, src, dest string) Outcome {
	start := time.Now()
	out := Outcome{Source: src, Action: ActionHEIC, Output: dest}
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

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		out.fail(fmt.Errorf("create output dir: %w", err))
		out.finish(start)
		return out
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*.heic")
	if err != nil {
		out.fail(fmt.Errorf("create temp file: %w", err))
		out.finish(start)
		return out
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	lossless := c.cfg.HEICLossless()
	quality := c.cfg.HEICQuality
	input := src
	res := c.runHeifEnc(ctx, input, tmpPath, quality, lossless)

	if res.Err != nil && ctx.Err() == nil {
		// Encoder rejected the source. Normalize through a temp PNG.
		pngPath, perr := c.normalizedIntermediate(src, &out)
		if perr == nil {
			defer os.Remove(pngPath)
			input = pngPath
			out.warn("encoder rejected source, re-encoded via normalized intermediate")
			res = c.runHeifEnc(ctx, input, tmpPath, quality, lossless)
		}
	}
	if res.Err != nil && ctx.Err() == nil && lossless {
		out.warn(fmt.Sprintf("lossless rejected by encoder, wrote quality %d", fallbackQuality))
		lossless = false
		quality = fallbackQuality
		res = c.runHeifEnc(ctx, input, tmpPath, quality, lossless)
	}
	if res.Err != nil {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = res.Err.Error()
		}
		out.fail(fmt.Errorf("heif-enc: %s", msg))
		out.finish(start)
		return out
	}

	// heif-enc wrote the temp file in its own process; flush it to disk
	// before the rename makes it visible under the final name.
	if err := syncFile(tmpPath); err != nil {
		out.fail(fmt.Errorf("sync temp file: %w", err))
		out.finish(start)
		return out
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		out.fail(fmt.Errorf("replace destination: %w", err))
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

// syncFile fsyncs a file written by another process.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type execResult struct {
	Stderr string
	Err    error
}

// runHeifEnc invokes heif-enc once. Stderr is tee'd through when verbose,
// otherwise captured silently for the failure message.
func (c *Converter) runHeifEnc(ctx context.Context, input, output string, quality int, lossless bool) execResult {
	args := buildHeifArgs(input, output, quality, lossless)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stderrBuf bytes.Buffer
	if c.cfg.Verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}
	cmd.Stdout = io.Discard

	err := cmd.Run()
	return execResult{Stderr: stderrBuf.String(), Err: err}
}

func buildHeifArgs(input, output string, quality int, lossless bool) []string {
	args := []string{"heif-enc"}
	if lossless {
		args = append(args, "--lossless")
	} else {
		args = append(args, "-q", strconv.Itoa(quality))
	}
	return append(args, "-o", output, input)
}

// normalizedIntermediate decodes src and writes it back as an 8-bit PNG the
// encoder is guaranteed to accept.
func (c *Converter) normalizedIntermediate(src string, out *Outcome) (string, error) {
	img, err := imaging.Decode(src)
	if err != nil {
		return "", err
	}
	if depth := imaging.BitDepth(img); depth > 8 {
		out.warn(fmt.Sprintf("%d-bit source flattened to 8-bit HEIC", depth))
	}

	tmp, err := os.CreateTemp("", "scanmaster-*.png")
	if err != nil {
		return "", err
	}
	if err := png.Encode(tmp, imaging.To8Bit(img)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
