// Package pipeline orchestrates scan discovery, variant selection, format
// conversion, and archiving for a batch run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/backmassage/scanmaster/internal/archive"
	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/display"
	"github.com/backmassage/scanmaster/internal/quality"
	"github.com/backmassage/scanmaster/internal/variant"
	"github.com/backmassage/scanmaster/internal/writer"
)

// Progress receives the fraction of groups completed after each group.
type Progress func(fraction float64)

// Status receives human-readable status lines as the run advances. Invoked
// from the worker goroutine.
type Status func(msg string)

// scoreAdapter bridges the quality analyzer into the selector's Scorer
// contract.
type scoreAdapter struct {
	analyzer *quality.Analyzer
}

func (s scoreAdapter) Score(ctx context.Context, path string) (float64, error) {
	m, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		return 0, err
	}
	return quality.Score(m), nil
}

// Runner executes one batch run on a single worker goroutine. Configure
// callbacks before calling Run; State is safe to read concurrently.
type Runner struct {
	cfg      *config.Config
	log      zerolog.Logger
	selector *variant.Selector
	conv     *writer.Converter
	arch     *archive.Archiver

	progress Progress
	status   Status

	mu    sync.Mutex
	state State
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		cfg: cfg,
		log: log.Logger.With().Str("component", "pipeline").Logger(),
		selector: variant.NewSelector(
			scoreAdapter{analyzer: quality.NewAnalyzer()},
			quality.NewSSIMChecker(),
			cfg.SimilarityThreshold,
			cfg.ScoreGap,
		),
		conv:  writer.New(cfg),
		arch:  archive.New(cfg),
		state: StateIdle,
	}
}

// OnProgress registers the per-group completion callback. Call before Run.
func (r *Runner) OnProgress(fn Progress) { r.progress = fn }

// OnStatus registers the status-line callback. Call before Run.
func (r *Runner) OnStatus(fn Status) { r.status = fn }

// State returns the runner's current lifecycle position.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run processes every scan group under the input directory and returns the
// accumulated report. Cancellation is not an error: the report comes back
// with state Cancelled and whatever was completed. Only discovery failure
// returns a non-nil error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		SourceDir: r.cfg.InputDir,
		DryRun:    r.cfg.DryRun,
		StartedAt: time.Now(),
	}
	r.setState(StateScanning)

	files, err := Discover(r.cfg.InputDir)
	if err != nil {
		r.setState(StateFailed)
		report.State = StateFailed
		report.FinishedAt = time.Now()
		return report, fmt.Errorf("discover input files: %w", err)
	}
	groups := variant.GroupFiles(files)
	stats := RunStats{Groups: len(groups)}
	r.logBatchHeader(len(files), len(groups))

	cancelled := false
	for i, g := range groups {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		stats.Current = i + 1
		report.Groups = append(report.Groups, r.processGroup(ctx, g, &stats))
		if r.progress != nil {
			r.progress(float64(i+1) / float64(len(groups)))
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	final := StateCompleted
	if cancelled {
		final = StateCancelled
		r.log.Warn().Msg("run cancelled, partial results kept")
	}
	report.State = final
	report.FinishedAt = time.Now()
	r.setState(final)
	r.logSummary(&stats)

	if !r.cfg.DryRun {
		if err := report.Save(r.cfg.ReportPath()); err != nil {
			r.log.Warn().Err(err).Msg("could not save conversion report")
		}
	}
	return report, nil
}

// processGroup runs selection, conversion, and archiving for one group.
// Cancellation unwinds immediately; outcomes recorded so far stay in the
// result.
func (r *Runner) processGroup(ctx context.Context, g variant.Group, stats *RunStats) GroupResult {
	gr := GroupResult{Stem: g.Stem}
	fronts, backs := g.Fronts(), g.Backs()
	r.statusf("[%d/%d] %s (%d files)", stats.Current, stats.Groups, g.Stem, len(g.Variants))

	convert := fronts
	var rejected []variant.Variant

	if r.cfg.SmartConversion && r.cfg.VariantPolicy != config.PolicyNone && len(fronts) > 1 {
		r.setState(StateSelecting)
		sel, err := r.selector.Select(ctx, fronts, r.cfg.VariantPolicy)
		if err != nil {
			if ctx.Err() != nil {
				return gr
			}
			// Contract violation: fail this group, touch nothing.
			r.log.Error().Str("group", g.Stem).Err(err).Msg("variant selection failed")
			return gr
		}
		gr.Chosen = sel.Chosen.Path
		gr.Reason = string(sel.Reason)
		gr.Ambiguous = sel.Ambiguous
		gr.Scores = sel.Scores
		convert = []variant.Variant{sel.Chosen}
		for _, f := range fronts {
			if f.Path != sel.Chosen.Path {
				rejected = append(rejected, f)
			}
		}
		r.statusf("  selected %s (%s)", filepath.Base(sel.Chosen.Path), sel.Reason)
		if sel.Ambiguous {
			r.log.Warn().Str("group", g.Stem).Msg("top candidates scored within the ambiguity margin")
		}
	}

	// Backsides always convert, bypassing selection. Hard rule.
	targets := append(append([]variant.Variant{}, convert...), backs...)

	r.setState(StateConverting)
	primaryOK := make(map[string]bool, len(targets))
	for _, v := range targets {
		if ctx.Err() != nil {
			return gr
		}
		primaryOK[v.Path] = r.convertVariant(ctx, v, &gr, stats)
	}

	r.setState(StateArchiving)
	for _, v := range targets {
		if ctx.Err() != nil {
			return gr
		}
		// Primary success gates the move: an unconverted original is never
		// taken out of the source directory.
		if !primaryOK[v.Path] {
			r.log.Warn().Str("source", v.Path).Msg("primary conversion failed, original left in place")
			continue
		}
		r.record(r.arch.Archive(ctx, v, false), &gr, stats)
	}
	if r.cfg.SmartArchive {
		for _, v := range rejected {
			if ctx.Err() != nil {
				return gr
			}
			r.record(r.arch.Archive(ctx, v, true), &gr, stats)
		}
	}

	// Individual write or move failures are recorded in the outcomes, not
	// promoted to a group failure. Only selection blowing up or cancellation
	// mid-group leaves this false.
	gr.Success = true
	return gr
}

// convertVariant writes every enabled output format for one file and reports
// whether the primary format succeeded. Priority order TIFF, HEIC, JPEG: the
// first enabled format is the one that gates archiving.
func (r *Runner) convertVariant(ctx context.Context, v variant.Variant, gr *GroupResult, stats *RunStats) bool {
	base := filepath.Base(v.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	primary := false
	primarySet := false
	note := func(out writer.Outcome) {
		r.record(out, gr, stats)
		if !primarySet {
			primary = out.Success
			primarySet = true
		}
	}

	if r.cfg.CreateTIFF {
		if ctx.Err() != nil {
			return primary
		}
		suffix := "_lzw.tif"
		if r.cfg.Compression == config.CompressionDeflate {
			suffix = "_deflate.tif"
		}
		note(r.conv.ConvertTIFF(ctx, v.Path, filepath.Join(r.cfg.TIFFOutputDir(), stem+suffix)))
	}
	if r.cfg.CreateHEIC {
		if ctx.Err() != nil {
			return primary
		}
		note(r.conv.ConvertHEIC(ctx, v.Path, filepath.Join(r.cfg.HEICOutputDir(), stem+".heic")))
	}
	if r.cfg.CreateJPG {
		if ctx.Err() != nil {
			return primary
		}
		note(r.conv.ConvertJPEG(ctx, v.Path, filepath.Join(r.cfg.JPGOutputDir(), stem+".jpg")))
	}
	return primary
}

func (r *Runner) record(out writer.Outcome, gr *GroupResult, stats *RunStats) {
	gr.Outcomes = append(gr.Outcomes, out)
	stats.Add(out)
	base := filepath.Base(out.Source)
	switch {
	case !out.Success:
		r.log.Error().Str("file", base).Str("action", out.Action).Str("error", out.Error).Msg("operation failed")
	case out.Simulated:
		r.statusf("  [dry] %s: %s", out.Action, base)
	default:
		r.statusf("  %s: %s (%s)", out.Action, base, display.FormatDuration(time.Duration(out.DurationSeconds*float64(time.Second))))
	}
	for _, w := range out.Warnings {
		r.log.Warn().Str("file", base).Msg(w)
	}
}

func (r *Runner) logBatchHeader(files, groups int) {
	r.statusf("Scanning %s: %d files in %d groups", r.cfg.InputDir, files, groups)
	if r.cfg.DryRun {
		r.log.Info().Msg("dry run: nothing will be written or moved")
	}
}

func (r *Runner) logSummary(stats *RunStats) {
	r.statusf("Done: %d conversions, %d moves, %d rejected",
		stats.Converted, stats.Archived, stats.Rejected)
	if stats.ConversionsFailed > 0 || stats.ArchivesFailed > 0 {
		r.log.Warn().
			Int("conversions", stats.ConversionsFailed).
			Int("moves", stats.ArchivesFailed).
			Msg("failures recorded, see report")
	}
	if stats.TotalOutputBytes > 0 {
		r.log.Info().
			Str("input", display.FormatBytes(stats.TotalInputBytes)).
			Str("output", display.FormatBytes(stats.TotalOutputBytes)).
			Str("ratio", display.FormatRatio(stats.TotalInputBytes, stats.TotalOutputBytes)).
			Msg("space")
	}
}

func (r *Runner) statusf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.log.Info().Msg(msg)
	if r.status != nil {
		r.status(msg)
	}
}
