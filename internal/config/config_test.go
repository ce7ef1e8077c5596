package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 4096, cfg.History.MaxCount)
	assert.True(t, cfg.History.NoDuplicates)
	assert.Equal(t, SaveStyleIncremental, cfg.History.SaveStyle)
	assert.Equal(t, filepath.Join(cfg.DataDir, "history.txt"), cfg.History.SavePath)
	assert.Equal(t, 100*time.Millisecond, cfg.GetLockTimeout())
	assert.False(t, cfg.Sentry.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().History, cfg.History)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[history]
max_count = 50
no_duplicates = false
save_style = "AT_EXIT"
save_path = "/var/tmp/shist/history.txt"
lock_timeout_ms = 250

[logging]
level = "debug"

[output]
colors_enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.History.MaxCount)
	assert.False(t, cfg.History.NoDuplicates)
	assert.Equal(t, SaveStyleAtExit, cfg.History.SaveStyle)
	assert.Equal(t, "/var/tmp/shist/history.txt", cfg.GetSavePath())
	assert.Equal(t, 250*time.Millisecond, cfg.GetLockTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Output.ColorsEnabled)
	// Unset keys keep their defaults
	assert.Equal(t, "#FF0000", cfg.Output.ErrorColor)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown save style",
			content: "[history]\nsave_style = \"sometimes\"\n",
			errMsg:  "history.save_style",
		},
		{
			name:    "sample rate out of range",
			content: "[sentry]\nsample_rate = 2.0\n",
			errMsg:  "sentry.sample_rate",
		},
		{
			name:    "malformed toml",
			content: "[history\nmax_count = 1\n",
			errMsg:  "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.History.MaxCount = 10
	cfg.History.SaveStyle = SaveStyleNothing
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.History.MaxCount)
	assert.Equal(t, SaveStyleNothing, loaded.History.SaveStyle)
}

func TestGetSavePath_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	cfg.History.SavePath = "~/hist/history.txt"
	assert.Equal(t, filepath.Join(home, "hist", "history.txt"), cfg.GetSavePath())

	cfg.History.SavePath = "~other/history.txt"
	assert.Equal(t, "~other/history.txt", cfg.GetSavePath())
}

func TestSetDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetDataDir("/srv/shist")

	assert.Equal(t, "/srv/shist", cfg.DataDir)
	assert.Equal(t, "/srv/shist/history.txt", cfg.GetSavePath())
}
