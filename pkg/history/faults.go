package history

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/NeverVane/shellhistory/internal/logger"
	"github.com/NeverVane/shellhistory/internal/sentry"
)

// maxFaultReports is how many history file errors one process shows
const maxFaultReports = 2

const finalFaultMessage = "This error will not be reported again in this session. " +
	"Consider using a different path with --history-path, or set save_style = \"nothing\"."

// Reporter shows history file errors to the user without flooding an
// interactive session. It only reports; it never retries or changes state.
type Reporter struct {
	out      io.Writer
	path     string
	style    lipgloss.Style
	reported int
	log      *logger.Logger
}

// NewReporter creates a reporter writing to out. Errors are rendered with style.
func NewReporter(out io.Writer, path string, style lipgloss.Style) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{
		out:   out,
		path:  path,
		style: style,
		log:   logger.GetLogger().History().WithOperation("file_io").WithField("path", path),
	}
}

// Report shows err to the user until the report limit is reached. Past the
// limit it does nothing, not even logging.
func (r *Reporter) Report(err error) {
	if err == nil || r.reported >= maxFaultReports {
		return
	}
	r.reported++

	r.log.WithError(err).Error().Int("reported", r.reported).Msg("History file error")
	if sentry.IsEnabled() {
		sentry.CaptureError(err, "history", "file_io")
	}

	msg := fmt.Sprintf("Error reading or writing history file '%s': %s", r.path, faultMessage(err))
	fmt.Fprintln(r.out, r.style.Render(msg))
	if r.reported == maxFaultReports {
		fmt.Fprintln(r.out, r.style.Render(finalFaultMessage))
	}
}

// Reported returns how many errors have been shown
func (r *Reporter) Reported() int {
	return r.reported
}

// faultMessage strips the path from path errors since the report already names it
func faultMessage(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Op + ": " + pathErr.Err.Error()
	}
	return err.Error()
}

// isFileError reports whether err is a permission or I/O failure on the
// history file, the failures that are shown to the user
func isFileError(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	var syscallErr *os.SyscallError
	return errors.Is(err, fs.ErrPermission) ||
		errors.As(err, &pathErr) ||
		errors.As(err, &linkErr) ||
		errors.As(err, &syscallErr) ||
		errors.Is(err, io.ErrShortWrite) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
