package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/NeverVane/shellhistory/internal/logger"
)

func TestReporter_LimitsReports(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, "/tmp/history.txt", lipgloss.NewStyle())

	err := &fs.PathError{Op: "open", Path: "/tmp/history.txt", Err: syscall.EACCES}
	r.Report(err)
	assert.Equal(t, 1, r.Reported())
	assert.NotContains(t, out.String(), finalFaultMessage)

	r.Report(err)
	r.Report(err)
	r.Report(err)
	assert.Equal(t, 2, r.Reported())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"Error reading or writing history file '/tmp/history.txt': open: permission denied",
		"Error reading or writing history file '/tmp/history.txt': open: permission denied",
		finalFaultMessage,
	}, lines)
}

func TestReporter_SilentPastLimit(t *testing.T) {
	var out, logs bytes.Buffer
	r := NewReporter(&out, "/tmp/history.txt", lipgloss.NewStyle())
	r.log = &logger.Logger{Logger: zerolog.New(&logs)}

	err := &fs.PathError{Op: "write", Path: "/tmp/history.txt", Err: syscall.ENOSPC}
	for i := 0; i < 4; i++ {
		r.Report(err)
	}

	entries := strings.Split(strings.TrimSpace(logs.String()), "\n")
	assert.Len(t, entries, 2)
	assert.Contains(t, entries[1], `"reported":2`)
	assert.Contains(t, entries[1], `"error":"write /tmp/history.txt: no space left on device"`)
}

func TestReporter_IgnoresNil(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, "history.txt", lipgloss.NewStyle())

	r.Report(nil)
	assert.Equal(t, 0, r.Reported())
	assert.Empty(t, out.String())
}

func TestFaultMessage(t *testing.T) {
	assert.Equal(t, "write: no space left on device",
		faultMessage(&fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}))
	assert.Equal(t, "short write", faultMessage(io.ErrShortWrite))
}

func TestIsFileError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "permission", err: os.ErrPermission, want: true},
		{name: "path error", err: &fs.PathError{Op: "open", Path: "/x", Err: syscall.EROFS}, want: true},
		{name: "wrapped path error", err: fmt.Errorf("failed to write history: %w", &fs.PathError{Op: "write", Err: syscall.EIO}), want: true},
		{name: "link error", err: &os.LinkError{Op: "rename", Err: syscall.EXDEV}, want: true},
		{name: "syscall error", err: os.NewSyscallError("fsync", syscall.EIO), want: true},
		{name: "short write", err: io.ErrShortWrite, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isFileError(tt.err))
		})
	}
}
