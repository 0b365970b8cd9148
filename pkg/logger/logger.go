// Package logger provides a simple logging interface backed by zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

// Config holds logger output settings.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for the rotated log file, empty disables it
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type logger struct {
	zl      zerolog.Logger
	rotator *lumberjack.Logger
}

// New creates a console logger whose level comes from LOG_LEVEL.
func New() Logger {
	return NewWithConfig(Config{Level: os.Getenv("LOG_LEVEL")})
}

// NewWithConfig creates a logger writing to stdout and, when Path is set,
// to a size-rotated file.
func NewWithConfig(cfg Config) Logger {
	var console io.Writer = os.Stdout
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	out := console
	var rotator *lumberjack.Logger
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Path, "gostremiodebrid.log"),
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   true,
				LocalTime:  true,
			}
			out = io.MultiWriter(console, rotator)
		}
	}

	return NewFromWriter(out, cfg.Level, rotator)
}

// NewFromWriter builds a logger on an arbitrary writer. Tests use it to
// capture output.
func NewFromWriter(w io.Writer, level string, rotator *lumberjack.Logger) Logger {
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &logger{zl: zl, rotator: rotator}
}

// Close flushes and closes the rotated file if the logger owns one.
func Close(l Logger) error {
	if lg, ok := l.(*logger); ok && lg.rotator != nil {
		return lg.rotator.Close()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// parseLevel converts string log level to a zerolog level
func parseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *logger) Debug(v ...interface{}) { l.zl.Debug().Msg(fmt.Sprint(v...)) }

func (l *logger) Debugf(format string, v ...interface{}) { l.zl.Debug().Msgf(format, v...) }

func (l *logger) Info(v ...interface{}) { l.zl.Info().Msg(fmt.Sprint(v...)) }

func (l *logger) Infof(format string, v ...interface{}) { l.zl.Info().Msgf(format, v...) }

func (l *logger) Warn(v ...interface{}) { l.zl.Warn().Msg(fmt.Sprint(v...)) }

func (l *logger) Warnf(format string, v ...interface{}) { l.zl.Warn().Msgf(format, v...) }

func (l *logger) Error(v ...interface{}) { l.zl.Error().Msg(fmt.Sprint(v...)) }

func (l *logger) Errorf(format string, v ...interface{}) { l.zl.Error().Msgf(format, v...) }

// Fatal logs an error message and exits
func (l *logger) Fatal(v ...interface{}) { l.zl.Fatal().Msg(fmt.Sprint(v...)) }

// Fatalf logs a formatted error message and exits
func (l *logger) Fatalf(format string, v ...interface{}) { l.zl.Fatal().Msgf(format, v...) }
