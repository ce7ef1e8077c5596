package filelock

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverVane/shellhistory/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

func TestFileLock_AcquireRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "history.lock")
	fl := New(lockPath)

	require.NoError(t, fl.Acquire(time.Second))
	assert.True(t, fl.IsLocked())

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	require.NoError(t, fl.Release())
	assert.False(t, fl.IsLocked())

	data, err = os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Empty(t, data)

	// Reacquiring after a clean release is not reported as abandoned
	require.NoError(t, fl.Acquire(time.Second))
	require.NoError(t, fl.Release())
}

func TestFileLock_Contention(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "history.lock")
	holder := New(lockPath)
	waiter := New(lockPath)

	require.NoError(t, holder.Acquire(time.Second))

	start := time.Now()
	err := waiter.Acquire(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.False(t, waiter.IsLocked())

	require.NoError(t, holder.Release())
	require.NoError(t, waiter.Acquire(time.Second))
	require.NoError(t, waiter.Release())
}

func TestFileLock_WaitsForRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "history.lock")
	holder := New(lockPath)
	waiter := New(lockPath)

	require.NoError(t, holder.Acquire(time.Second))
	go func() {
		time.Sleep(20 * time.Millisecond)
		holder.Release()
	}()

	require.NoError(t, waiter.Acquire(2*time.Second))
	require.NoError(t, waiter.Release())
}

func TestFileLock_Abandoned(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "history.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("4242\n"), 0644))

	fl := New(lockPath)
	err := fl.Acquire(time.Second)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.True(t, fl.IsLocked(), "an abandoned lock is held after Acquire")

	require.NoError(t, fl.Release())
	require.NoError(t, fl.Acquire(time.Second))
	require.NoError(t, fl.Release())
}

func TestFileLock_ReleaseNotHeld(t *testing.T) {
	fl := New(filepath.Join(t.TempDir(), "history.lock"))
	assert.ErrorIs(t, fl.Release(), ErrNotHeld)
}

func TestFileLock_DoubleAcquire(t *testing.T) {
	fl := New(filepath.Join(t.TempDir(), "history.lock"))
	require.NoError(t, fl.Acquire(time.Second))
	defer fl.Release()

	assert.Error(t, fl.Acquire(time.Second))
}

func TestFileLock_MissingDirectory(t *testing.T) {
	fl := New(filepath.Join(t.TempDir(), "missing", "history.lock"))
	err := fl.Acquire(time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestName(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "history.txt")

	assert.Equal(t, Name(a), Name(a))
	assert.Equal(t, Name(a), Name(strings.ToUpper(a)))
	assert.NotEqual(t, Name(a), Name(filepath.Join(dir, "other.txt")))
	assert.True(t, strings.HasPrefix(Name(a), "shist-"))
	assert.Len(t, Name(a), len("shist-")+16)

	assert.Equal(t, filepath.Join(os.TempDir(), Name(a)+".lock"), ForPath(a).Path())
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, IsProcessRunning(os.Getpid()))
	assert.False(t, IsProcessRunning(0))
	assert.False(t, IsProcessRunning(-1))
}

type fakeOwnerFile struct {
	content     *strings.Reader
	readErr     error
	truncateErr error
	writeErr    error
	written     []byte
}

func (f *fakeOwnerFile) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.content.Read(p)
}

func (f *fakeOwnerFile) Truncate(int64) error { return f.truncateErr }

func (f *fakeOwnerFile) WriteAt(b []byte, _ int64) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append([]byte(nil), b...)
	return len(b), nil
}

func TestRecordOwner_Failures(t *testing.T) {
	ownPID := strconv.Itoa(os.Getpid()) + "\n"

	tests := []struct {
		name        string
		file        *fakeOwnerFile
		wantPrev    int
		wantWritten string
		wantLogs    []string
	}{
		{
			name:        "clean",
			file:        &fakeOwnerFile{content: strings.NewReader("")},
			wantWritten: ownPID,
		},
		{
			name:        "previous owner",
			file:        &fakeOwnerFile{content: strings.NewReader("4242\n")},
			wantPrev:    4242,
			wantWritten: ownPID,
		},
		{
			name:        "read fails",
			file:        &fakeOwnerFile{content: strings.NewReader(""), readErr: errors.New("eio")},
			wantWritten: ownPID,
			wantLogs:    []string{"Failed to read lock owner"},
		},
		{
			name:        "truncate fails still writes pid",
			file:        &fakeOwnerFile{content: strings.NewReader("4242\n"), truncateErr: errors.New("erofs")},
			wantPrev:    4242,
			wantWritten: ownPID,
			wantLogs:    []string{"Failed to clear lock owner"},
		},
		{
			name:     "write fails",
			file:     &fakeOwnerFile{content: strings.NewReader(""), writeErr: errors.New("enospc")},
			wantLogs: []string{"Failed to record lock owner"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			fl := New(filepath.Join(t.TempDir(), "history.lock"))
			fl.logger = &logger.Logger{Logger: zerolog.New(&logs)}

			assert.Equal(t, tt.wantPrev, fl.recordOwner(tt.file))
			assert.Equal(t, tt.wantWritten, string(tt.file.written))

			out := strings.TrimSpace(logs.String())
			if len(tt.wantLogs) == 0 {
				assert.Empty(t, out)
				return
			}
			entries := strings.Split(out, "\n")
			require.Len(t, entries, len(tt.wantLogs))
			for i, msg := range tt.wantLogs {
				assert.Contains(t, entries[i], `"level":"warn"`)
				assert.Contains(t, entries[i], msg)
			}
		})
	}
}
