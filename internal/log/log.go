// Package log holds the process-wide slog logger. Records go to stdout
// and, when a file is configured, to a size-rotated log beside it so a
// walk can be replayed after the fact.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Options controls where and how logs are written.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// File, when set, receives a copy of every record and is rotated
	// by size.
	File string

	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int
}

// Init is InitWithOptions with only a level.
func Init(level string) {
	InitWithOptions(Options{Level: level})
}

// InitWithOptions initializes the global logger. Only the first call wins.
func InitWithOptions(o Options) {
	once.Do(func() {
		opts := &slog.HandlerOptions{
			Level: ParseLevel(o.Level),
		}

		var w io.Writer = os.Stdout
		if o.File != "" {
			maxSize := o.MaxSizeMB
			if maxSize <= 0 {
				maxSize = 50
			}
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   o.File,
				MaxSize:    maxSize,
				MaxBackups: 3,
				MaxAge:     7,
				Compress:   true,
				LocalTime:  true,
			})
		}

		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(w, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(w, opts))
		}

		slog.SetDefault(logger)
	})
}

// ParseLevel maps a level name to an slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the process logger, initializing it at info if needed.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
