package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDir points the package at a fresh temp directory and session.
func setupTestDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("OPERATOR_LOG_DIR", dir)

	logDir = ""
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	prev := CurrentLevel()
	SetLevel(LevelDebug)
	t.Cleanup(func() { SetLevel(prev) })
	return dir
}

func TestNewLogger(t *testing.T) {
	dir := setupTestDir(t)

	logger, err := NewLogger("test-component")
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, "test-component", logger.component)
	assert.NotEmpty(t, logger.SessionID())
	assert.Equal(t, dir, filepath.Dir(logger.LogPath()))
	assert.FileExists(t, logger.LogPath())
	assert.True(t, strings.HasSuffix(logger.LogPath(), "-operator.log"))
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)
	defer logger.Close()

	logger.Debugf("Debug message %d", 1)
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content, err := os.ReadFile(logger.LogPath())
	require.NoError(t, err)

	for _, pattern := range []string{
		"[test] [DEBUG] Debug message 1",
		"[test] [INFO] Info message",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	} {
		assert.Contains(t, string(content), pattern)
	}
}

func TestMultipleComponentsShareFile(t *testing.T) {
	setupTestDir(t)

	a, err := NewLogger("component1")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewLogger("component2")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.SessionID(), b.SessionID())
	assert.Equal(t, a.LogPath(), b.LogPath())

	a.Infof("from one")
	b.Infof("from two")

	content, err := os.ReadFile(a.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "[component1]")
	assert.Contains(t, string(content), "[component2]")
}

func TestLevelThreshold(t *testing.T) {
	setupTestDir(t)
	SetLevel(LevelWarn)

	var buf bytes.Buffer
	logger := NewWriterLogger("agent", &buf)
	logger.Debugf("hidden")
	logger.Infof("hidden too")
	logger.Warnf("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[agent] [WARN] shown")
}

func TestWithSubComponent(t *testing.T) {
	setupTestDir(t)

	var buf bytes.Buffer
	NewWriterLogger("jobs", &buf).With("abc").Infof("started")
	assert.Contains(t, buf.String(), "[jobs/abc] [INFO] started")
}

func TestNopAndNilLogger(t *testing.T) {
	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Infof("nothing")
		Nop().Errorf("nothing")
		nilLogger.With("x").Warnf("nothing")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerCloseTwice(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestGetLogDirectory(t *testing.T) {
	dir := setupTestDir(t)

	got, err := GetLogDirectory()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, got)
}
