// Command scanmaster converts scanner TIFF batches: it groups front/back and
// augmented scan variants, picks the best front by image quality, re-encodes
// the keepers into the configured formats, and archives the originals.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/backmassage/scanmaster/internal/check"
	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/display"
	"github.com/backmassage/scanmaster/internal/logging"
	"github.com/backmassage/scanmaster/internal/pipeline"
)

// version and commit are set at build time via -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:      "scanmaster",
		Usage:     "convert and archive scanner TIFF batches",
		ArgsUsage: "SOURCE_DIR",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config `FILE` layered under the flags"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "run all decision logic, write and move nothing"},
			&cli.BoolFlag{Name: "tiff", Value: true, Usage: "write losslessly compressed TIFF copies"},
			&cli.StringFlag{Name: "compression", Value: string(config.CompressionLZW), Usage: "TIFF compression: lzw or deflate"},
			&cli.BoolFlag{Name: "heic", Usage: "write HEIC copies (needs heif-enc)"},
			&cli.IntFlag{Name: "heic-quality", Value: -1, Usage: "HEIC quality 0-100, -1 for lossless"},
			&cli.BoolFlag{Name: "jpg", Usage: "write JPEG copies"},
			&cli.IntFlag{Name: "jpg-quality", Value: 90, Usage: "JPEG quality 1-100"},
			&cli.StringFlag{Name: "policy", Value: string(config.PolicyAuto), Usage: "front selection: auto, prefer_base, prefer_a or none"},
			&cli.BoolFlag{Name: "smart-conversion", Value: true, Usage: "convert only the selected front of each group"},
			&cli.BoolFlag{Name: "smart-archive", Value: true, Usage: "archive rejected fronts to a separate subtree"},
			&cli.Float64Flag{Name: "similarity-threshold", Value: 0.98, Usage: "SSIM above which variants count as duplicates"},
			&cli.Float64Flag{Name: "score-gap", Value: 0.05, Usage: "score margin below which selection is flagged ambiguous"},
			&cli.BoolFlag{Name: "verify", Value: true, Usage: "re-decode outputs after writing"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
			&cli.StringFlag{Name: "color", Value: string(config.ColorAuto), Usage: "ANSI color: auto, always or never"},
			&cli.StringFlag{Name: "log-file", Usage: "also log to a rolling `FILE`"},
			&cli.BoolFlag{Name: "check", Usage: "check external dependencies and exit"},
		},
		Action:          run,
		HideHelpCommand: true,
	}

	// ExitCoder errors are handled (and exited on) inside Run; anything else
	// is a config or IO problem worth a plain one-liner.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "scanmaster: %v\n", err)
		os.Exit(1)
	}
}

// run layers configuration (defaults, file, flags), sets up logging, and
// either runs the dependency check or the batch pipeline.
func run(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return err
		}
	}
	applyFlags(c, &cfg)
	if dir := c.Args().First(); dir != "" {
		cfg.InputDir = config.NormalizeDirArg(dir)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLogs, err := logging.New(&cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	display.PrintBanner()

	if cfg.CheckOnly {
		if !check.RunCheck(&cfg, logger) {
			return cli.Exit("", 1)
		}
		return nil
	}

	st, err := os.Stat(cfg.InputDir)
	if err != nil || !st.IsDir() {
		return fmt.Errorf("source directory not found: %s", cfg.InputDir)
	}
	if err := check.CheckDeps(&cfg); err != nil {
		return err
	}

	logger.Info().Str("source", cfg.InputDir).Msg("starting batch")
	if cfg.DryRun {
		logger.Warn().Msg("DRY RUN")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.NewRunner(&cfg).Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case report.State == pipeline.StateCancelled:
		return cli.Exit("", 130)
	case anyGroupFailed(report):
		log.Warn().Msg("finished with failures")
		return cli.Exit("", 1)
	default:
		return nil
	}
}

// applyFlags copies every flag the user set on the command line over the
// file/default values.
func applyFlags(c *cli.Context, cfg *config.Config) {
	set := func(name string, apply func()) {
		if c.IsSet(name) {
			apply()
		}
	}
	set("dry-run", func() { cfg.DryRun = c.Bool("dry-run") })
	set("tiff", func() { cfg.CreateTIFF = c.Bool("tiff") })
	set("compression", func() { cfg.Compression = config.Compression(c.String("compression")) })
	set("heic", func() { cfg.CreateHEIC = c.Bool("heic") })
	set("heic-quality", func() { cfg.HEICQuality = c.Int("heic-quality") })
	set("jpg", func() { cfg.CreateJPG = c.Bool("jpg") })
	set("jpg-quality", func() { cfg.JPGQuality = c.Int("jpg-quality") })
	set("policy", func() { cfg.VariantPolicy = config.Policy(c.String("policy")) })
	set("smart-conversion", func() { cfg.SmartConversion = c.Bool("smart-conversion") })
	set("smart-archive", func() { cfg.SmartArchive = c.Bool("smart-archive") })
	set("similarity-threshold", func() { cfg.SimilarityThreshold = c.Float64("similarity-threshold") })
	set("score-gap", func() { cfg.ScoreGap = c.Float64("score-gap") })
	set("verify", func() { cfg.Verify = c.Bool("verify") })
	set("verbose", func() { cfg.Verbose = c.Bool("verbose") })
	set("color", func() { cfg.ColorMode = config.ColorMode(c.String("color")) })
	set("log-file", func() { cfg.LogFile = c.String("log-file") })
	set("check", func() { cfg.CheckOnly = c.Bool("check") })
}

// anyGroupFailed reports whether the run had any defect worth a non-zero
// exit: a group that blew up outright, or an individual write or move that
// failed inside an otherwise completed group.
func anyGroupFailed(r *pipeline.Report) bool {
	for _, g := range r.Groups {
		if !g.Success {
			return true
		}
		for _, o := range g.Outcomes {
			if !o.Success {
				return true
			}
		}
	}
	return false
}
