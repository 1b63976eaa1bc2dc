// Package logging configures the global zerolog logger: human-readable
// console output plus a rotated JSON file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls Init.
type Options struct {
	// Dir holds the log file. Empty disables file output.
	Dir string
	// File is the log file name inside Dir.
	File string
	// ConsoleLevel is the minimum level written to Console.
	ConsoleLevel zerolog.Level
	// FileLevel is the minimum level written to the file.
	FileLevel zerolog.Level
	// Console receives console output; nil means stderr.
	Console io.Writer
	// NoColor disables ANSI colors on the console.
	NoColor bool
}

// DefaultOptions logs Info to the console and Debug to
// <user config dir>/mold-measure/logs/mold-measure.log.
func DefaultOptions() Options {
	dir := ""
	if cfg, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(cfg, "mold-measure", "logs")
	}
	return Options{
		Dir:          dir,
		File:         "mold-measure.log",
		ConsoleLevel: zerolog.InfoLevel,
		FileLevel:    zerolog.DebugLevel,
	}
}

// levelWriter forwards events at or above min.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (lw levelWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < lw.min {
		return len(p), nil
	}
	return lw.w.Write(p)
}

// Init installs the global logger and returns a cleanup that closes the
// log file.
func Init(opts Options) (func(), error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{levelWriter{
		w: zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor,
		},
		min: opts.ConsoleLevel,
	}}

	cleanup := func() {}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, opts.File),
			MaxSize:    10, // MB
			MaxBackups: 3,
			LocalTime:  true,
		}
		writers = append(writers, levelWriter{w: lj, min: opts.FileLevel})
		cleanup = func() {
			if err := lj.Close(); err != nil {
				log.Error().Err(err).Msg("Logging: failed to close log file")
			}
		}
	}

	min := opts.ConsoleLevel
	if opts.Dir != "" && opts.FileLevel < min {
		min = opts.FileLevel
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(min).
		With().Timestamp().Logger()
	return cleanup, nil
}

// ParseLevel maps a flag value such as "debug" to a level.
func ParseLevel(s string) (zerolog.Level, error) {
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
