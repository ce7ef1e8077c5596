package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(&Config{Level: "loud", Output: "stderr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shist.log")
	require.NoError(t, Init(&Config{Level: "debug", Output: path}))
	t.Cleanup(Discard)

	GetLogger().History().WithSessionID("abc").Info().Msg("loaded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "history", entry["component"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "loaded", entry["message"])
}

func TestPerformance(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel), level: zerolog.DebugLevel, output: &buf}

	l.Performance("load", 5*time.Millisecond, map[string]interface{}{"entries": 3})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "load", entry["perf_operation"])
	assert.EqualValues(t, 3, entry["entries"])
	assert.Equal(t, "performance metric", entry["message"])
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: zerolog.New(&buf), level: zerolog.DebugLevel, output: &buf}

	l.WithComponent("history").
		WithField("path", "/tmp/h.txt").
		WithFields(map[string]interface{}{"lines": 2, "from_other_session": true}).
		WithError(errors.New("disk full")).
		Error().Msg("write failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "history", entry["component"])
	assert.Equal(t, "/tmp/h.txt", entry["path"])
	assert.EqualValues(t, 2, entry["lines"])
	assert.Equal(t, true, entry["from_other_session"])
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestWithComponent_UsesGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	globalLogger = &Logger{Logger: zerolog.New(&buf), level: zerolog.DebugLevel, output: &buf}
	t.Cleanup(Discard)

	WithComponent("record").Info().Msg("recorded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "record", entry["component"])
}

func TestDiscard(t *testing.T) {
	Discard()
	assert.NotNil(t, GetLogger())
	assert.Equal(t, zerolog.Disabled, GetLogger().level)
}
