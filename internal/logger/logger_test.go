package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"": slog.LevelInfo, "INFO": slog.LevelInfo, "debug": slog.LevelDebug,
		"warning": slog.LevelWarn, "warn": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestWriterDefaults(t *testing.T) {
	var buf bytes.Buffer
	assert.Same(t, &buf, Config{}.Writer(&buf).(*bytes.Buffer))

	w := Config{File: "x.log"}.Writer(&buf)
	l, ok := w.(*lj.Logger)
	require.True(t, ok)
	assert.Equal(t, DefaultMaxSizeMB, l.MaxSize)
	assert.Equal(t, DefaultMaxBackups, l.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, l.MaxAge)

	l = Config{File: "y.log", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.Writer(nil).(*lj.Logger)
	assert.Equal(t, 1, l.MaxSize)
	assert.Equal(t, 9, l.MaxBackups)
	assert.Equal(t, 11, l.MaxAge)
	assert.True(t, l.Compress)
}

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frpdeck.log")
	lg, closer, err := New(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	lg.Debug("hello", "profile", "p1")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "p1", rec["profile"])
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(Config{Format: "xml"})
	assert.Error(t, err)
	_, _, err = New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestColorTextHandlerKeepsColorOnDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	lg := slog.New(NewColorTextHandler(&buf, nil)).With("component", "supervisor").WithGroup("g")
	lg.Warn("careful", "k", "v")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\033[33m"), out)
	assert.True(t, strings.HasSuffix(out, "\n"+colorReset), out)
	assert.Contains(t, out, "level=WARN msg=careful")
	assert.Contains(t, out, "component=supervisor")
	assert.Contains(t, out, "g.k=v")
}
