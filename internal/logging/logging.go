// Package logging configures the process-wide zerolog logger: a console
// writer on stdout plus an optional rolling file sink.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/backmassage/scanmaster/internal/config"
	"github.com/backmassage/scanmaster/internal/term"
)

// New builds the root logger from cfg, installs it as the global zerolog
// logger, and returns it along with a close function for the file sink.
// Packages derive component loggers from it via
// log.Logger.With().Str("component", …).
func New(cfg *config.Config) (zerolog.Logger, func() error, error) {
	term.Configure(cfg.ColorMode)

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.TimeOnly,
		NoColor:    !term.Enabled(),
	}

	writers := []io.Writer{console}
	closeFn := func() error { return nil }

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return zerolog.Logger{}, nil, err
		}
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // MiB per file before rolling.
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		writers = append(writers, file)
		closeFn = file.Close
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger, closeFn, nil
}
