// Package logger builds the process-wide slog logger.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/dlrshim/internal/env"
	"github.com/ekisa-team/dlrshim/internal/envvar"
)

type options struct {
	writer    io.Writer
	level     slog.Leveler
	logToFile bool
	logFile   string
	maxSizeMB int
}

// Option configures New.
type Option func(*options)

// WithWriter sets the console writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets the minimum level, overriding DLRSHIM_LOG_LEVEL.
func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithLogToFile enables the rotating JSON file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) { o.logToFile = enabled }
}

// WithLogFile sets the file the file sink writes to.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithMaxSize sets the size in megabytes at which the log file is rotated.
func WithMaxSize(mb int) Option {
	return func(o *options) { o.maxSizeMB = mb }
}

// New returns a logger for environment e. Development logs are colored text,
// production logs are JSON. With WithLogToFile the records are also written
// as JSON to a rotated file.
func New(e env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		writer:    os.Stderr,
		level:     LevelFromEnv(),
		logFile:   "logs/dlrshim.log",
		maxSizeMB: 50,
	}
	for _, opt := range opts {
		opt(o)
	}

	var console slog.Handler
	if e.IsProduction() {
		console = slog.NewJSONHandler(o.writer, &slog.HandlerOptions{Level: o.level})
	} else {
		console = tint.NewHandler(o.writer, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
			NoColor:    e == env.Test,
		})
	}

	if !o.logToFile {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    o.maxSizeMB,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}

	return slog.New(fanout{
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}),
	})
}

// LevelFromEnv parses DLRSHIM_LOG_LEVEL, defaulting to info.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(envvar.DlrshimLogLevel))
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// fanout sends every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
