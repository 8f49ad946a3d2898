package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/morozRed/cmdtrack/internal/watch"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	def := Default()
	require.Empty(t, cfg.Source)
	require.Equal(t, def.MaxDepth, cfg.MaxDepth)
	require.Equal(t, def.Debounce, cfg.Debounce)
	require.Equal(t, def.PollInterval, cfg.PollInterval)
	require.Equal(t, def.ExecTimeout, cfg.ExecTimeout)
	require.Equal(t, def.SimilarityThreshold, cfg.SimilarityThreshold)
	require.True(t, cfg.RespectGitignore)
	require.Equal(t, watch.ModeNative, cfg.WatchMode())
	require.Equal(t, zapcore.InfoLevel, cfg.Level())
}

func TestLoadReadsProjectFile(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, FileName), `max_depth: 4
ignore:
  - "*.log"
  - tmp/
debounce: 250ms
watch: poll
log_level: debug
`)

	cfg, err := Load(root, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, FileName), cfg.Source)
	require.Equal(t, 4, cfg.MaxDepth)
	require.Equal(t, []string{"*.log", "tmp/"}, cfg.Ignore)
	require.Equal(t, 250*time.Millisecond, cfg.Debounce)
	require.Equal(t, watch.ModePoll, cfg.WatchMode())
	require.Equal(t, zapcore.DebugLevel, cfg.Level())
	require.Equal(t, 8, cfg.ScanWorkers)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, FileName), "max_depth: 4\n")
	t.Setenv("CMDTRACK_MAX_DEPTH", "2")
	t.Setenv("CMDTRACK_EXEC_TIMEOUT", "5s")

	cfg, err := Load(root, "")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MaxDepth)
	require.Equal(t, 5*time.Second, cfg.ExecTimeout)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	mustWriteFile(t, path, "history_size: 7\n")

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.HistorySize)

	_, err = Load(dir, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"max_depth":            "max_depth: 0\n",
		"watch":                "watch: inotify\n",
		"similarity_threshold": "similarity_threshold: 1.5\n",
		"log_level":            "log_level: chatty\n",
	}
	for field, content := range cases {
		root := t.TempDir()
		mustWriteFile(t, filepath.Join(root, FileName), content)
		_, err := Load(root, "")
		var cfgErr *Error
		require.ErrorAs(t, err, &cfgErr, field)
		require.Equal(t, field, cfgErr.Field)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	root := t.TempDir()
	path, written, err := WriteDefault(root)
	require.NoError(t, err)
	require.True(t, written)
	require.Equal(t, filepath.Join(root, FileName), path)

	_, written, err = WriteDefault(root)
	require.NoError(t, err)
	require.False(t, written)

	cfg, err := Load(root, "")
	require.NoError(t, err)
	def := Default()
	require.Equal(t, def.Debounce, cfg.Debounce)
	require.Equal(t, def.PollInterval, cfg.PollInterval)
	require.Equal(t, def.Watch, cfg.Watch)
	require.Equal(t, def.HistorySize, cfg.HistorySize)
	require.Empty(t, cfg.Ignore)
}

func TestLoadIgnoreRules(t *testing.T) {
	root := t.TempDir()
	rules, err := LoadIgnoreRules(root)
	require.NoError(t, err)
	require.Nil(t, rules)

	mustWriteFile(t, filepath.Join(root, IgnoreFileName), "# generated\n\n*.tmp\n  secrets/  \n!keep.tmp\n")
	rules, err = LoadIgnoreRules(root)
	require.NoError(t, err)
	require.Equal(t, []string{"*.tmp", "secrets/", "!keep.tmp"}, rules)
}
