package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for the daemon log file.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config selects the daemon's own log format and destination.
// frpc output is captured separately, one file per profile.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text | json
	Color      bool   `mapstructure:"color"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ParseLevel accepts debug, info, warn/warning and error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Writer returns the rotating file writer for File, or fallback when File is empty.
func (c Config) Writer(fallback io.Writer) io.Writer {
	if c.File == "" {
		return fallback
	}
	return &lj.Logger{
		Filename:   filepath.Clean(c.File),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds the daemon logger. Color applies to text output on stderr only.
// The returned closer releases the log file, if any.
func New(c Config) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	w := c.Writer(os.Stderr)
	closer := io.Closer(nopCloser{})
	if wc, ok := w.(io.Closer); ok && c.File != "" {
		closer = wc
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(c.Format) {
	case "", "text":
		if c.Color && c.File == "" {
			h = NewColorTextHandler(w, opts)
		} else {
			h = slog.NewTextHandler(w, opts)
		}
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
