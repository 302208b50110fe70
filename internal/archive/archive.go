// Package archive moves processed originals into the archive tree without
// ever clobbering existing files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/variant"
	"github.com/backmassage/scanmaster/internal/writer"
)

// Archiver moves originals under an archive root, routing by variant role:
// chosen fronts into the root itself, backsides and rejected fronts into
// their subdirectories.
type Archiver struct {
	root   string
	dryRun bool
	log    zerolog.Logger
}

func New(cfg *config.Config) *Archiver {
	return &Archiver{
		root:   cfg.ArchiveDir(),
		dryRun: cfg.DryRun,
		log:    log.Logger.With().Str("component", "archive").Logger(),
	}
}

// Archive moves v's file into the archive tree. rejected marks fronts that
// lost variant selection; backsides route by their role regardless.
func (a *Archiver) Archive(ctx context.Context, v variant.Variant, rejected bool) writer.Outcome {
	start := time.Now()

	dir := a.root
	action := writer.ActionArchive
	switch {
	case v.Role == variant.RoleBack:
		dir = filepath.Join(a.root, config.DirBackside)
		action = writer.ActionArchiveBackside
	case rejected:
		dir = filepath.Join(a.root, config.DirRejected)
		action = writer.ActionArchiveRejected
	}

	out := writer.Outcome{Source: v.Path, Action: action}
	if st, err := os.Stat(v.Path); err == nil {
		out.SourceSizeBytes = st.Size()
	}

	if a.dryRun {
		out.Output = filepath.Join(dir, filepath.Base(v.Path))
		out.Success = true
		out.Simulated = true
		out.DurationSeconds = time.Since(start).Seconds()
		return out
	}

	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		out.DurationSeconds = time.Since(start).Seconds()
		return out
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		out.Error = fmt.Sprintf("create archive dir: %v", err)
		out.DurationSeconds = time.Since(start).Seconds()
		return out
	}

	dest, err := resolveCollision(filepath.Join(dir, filepath.Base(v.Path)))
	if err != nil {
		out.Error = fmt.Sprintf("resolve archive name: %v", err)
		out.DurationSeconds = time.Since(start).Seconds()
		return out
	}
	out.Output = dest

	if err := move(v.Path, dest); err != nil {
		out.Error = err.Error()
		out.DurationSeconds = time.Since(start).Seconds()
		return out
	}
	if dest != filepath.Join(dir, filepath.Base(v.Path)) {
		a.log.Warn().Str("source", v.Path).Str("dest", dest).Msg("archive name collision, renamed")
	}

	out.Success = true
	out.SizeBytes = out.SourceSizeBytes
	out.DurationSeconds = time.Since(start).Seconds()
	return out
}

// resolveCollision probes the filesystem for an unclaimed destination,
// appending _dupN before the extension until one is free. Stat failures
// other than "does not exist" propagate instead of counting as occupied.
func resolveCollision(dest string) (string, error) {
	free := func(path string) (bool, error) {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return false, nil
		case errors.Is(err, fs.ErrNotExist):
			return true, nil
		default:
			return false, err
		}
	}

	if ok, err := free(dest); err != nil || ok {
		return dest, err
	}
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_dup%d%s", stem, n, ext)
		if ok, err := free(candidate); err != nil {
			return "", err
		} else if ok {
			return candidate, nil
		}
	}
}

// move renames src to dest, falling back to copy+fsync+delete when rename
// fails (cross-device archive roots).
func move(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		os.Remove(dest)
		return fmt.Errorf("copy fallback: %w", err)
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
