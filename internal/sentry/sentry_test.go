package sentry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverVane/shellhistory/internal/config"
)

func TestInitialize_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sentry.Enabled = false

	require.NoError(t, Initialize(cfg, "test"))
	assert.False(t, IsEnabled())

	// Calls are no-ops while disabled
	CaptureError(errors.New("boom"), "history", "file_io")
	assert.True(t, Flush(time.Millisecond))
	Close()
}

func TestInitialize_MissingDSN(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sentry.Enabled = true
	cfg.Sentry.DSN = ""

	require.NoError(t, Initialize(cfg, "test"))
	assert.False(t, IsEnabled())
}

func TestSanitizeEvent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	historyPath := filepath.Join(home, ".local", "share", "shellhistory", "history.txt")

	event := &sentry.Event{
		ServerName: "workstation",
		User:       sentry.User{Username: "alice"},
		Message:    "failed to open " + historyPath,
		Exception: []sentry.Exception{
			{Value: "open " + historyPath + ": permission denied"},
		},
	}

	got := sanitizeEvent(event)
	require.NotNil(t, got)
	assert.Empty(t, got.ServerName)
	assert.Empty(t, got.User.Username)
	assert.Equal(t, "failed to open ~/.local/share/shellhistory/history.txt", got.Message)
	assert.Equal(t, "open ~/.local/share/shellhistory/history.txt: permission denied", got.Exception[0].Value)

	assert.Nil(t, sanitizeEvent(nil))
}
