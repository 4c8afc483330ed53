// Package lgr holds the process-wide structured logger.
package lgr

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared logger. It writes text to stderr until Init is called.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Config holds logging options.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string

	// File, when set, receives JSON log records through a rotating writer.
	File string

	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init replaces Logger according to config. The returned closer flushes and
// closes the log file, if any.
func Init(config Config) io.Closer {
	level := ParseLevel(config.Level)
	opts := &slog.HandlerOptions{Level: level}

	console := slog.NewTextHandler(os.Stderr, opts)
	if config.File == "" {
		Logger = slog.New(console)
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    orDefault(config.MaxSizeMB, 10), // MB
		MaxBackups: orDefault(config.MaxBackups, 5),
		MaxAge:     orDefault(config.MaxAgeDays, 7), // days
		Compress:   true,
	}

	Logger = slog.New(fanout{console, slog.NewJSONHandler(file, opts)})
	return file
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
