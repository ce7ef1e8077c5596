package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NeverVane/shellhistory/internal/filelock"
)

const (
	// continuationMarker ends a physical line that continues on the next one
	continuationMarker = "`"

	historyLoadTimeout = time.Second

	// first attempt plus two retries after recovering an abandoned lock
	maxLockAttempts = 3
)

// incrementalHistoryWrite appends every typed item not yet in the file.
// Merged foreign lines arrive already saved, so pending typed lines may sit
// behind them in the queue.
func (h *TextHistory) incrementalHistoryWrite() bool {
	var pending []*Item
	for _, item := range h.state.Items() {
		if !item.Saved && !item.FromHistoryFile && !item.FromOtherSession {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return true
	}
	return h.writeHistoryItems(pending, false)
}

// writeHistoryItems writes items to the file. Appends first collect what
// other processes wrote since the last sync and merge it only after the
// items are written, so the queue cannot shift underneath the write.
func (h *TextHistory) writeHistoryItems(items []*Item, overwrite bool) bool {
	return h.withHistoryFileLock(h.state.Options.LockTimeout, func() error {
		var foreign []string
		if !overwrite {
			lines, err := h.readHistoryFileIncrementally()
			if err != nil {
				return err
			}
			foreign = lines
		}
		defer func() {
			if len(foreign) > 0 {
				h.updateHistoryFromFile(foreign, true, false)
			}
		}()

		return h.writeItems(items, overwrite)
	})
}

func (h *TextHistory) writeItems(items []*Item, overwrite bool) error {
	path := h.state.Options.SavePath

	file, err := openHistoryFile(path, overwrite)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, item := range items {
		if item.Sensitive {
			continue
		}
		w.WriteString(encodeEntry(item.CommandLine))
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close history file: %w", err)
	}

	for _, item := range items {
		item.Saved = true
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	h.state.LastSavedSize = info.Size()

	h.log.Debug().
		Int("items", len(items)).
		Bool("overwrite", overwrite).
		Int64("size", info.Size()).
		Msg("History written")
	return nil
}

// openHistoryFile opens path for append, or truncates it when overwriting.
// A missing parent directory is created once and the open retried once.
func openHistoryFile(path string, overwrite bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0600)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, mkErr
		}
		file, err = os.OpenFile(path, flags, 0600)
	}
	return file, err
}

// readHistoryFileIncrementally returns the physical lines appended after
// LastSavedSize and advances LastSavedSize past them
func (h *TextHistory) readHistoryFileIncrementally() ([]string, error) {
	s := h.state

	info, err := os.Stat(s.Options.SavePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Size() == s.LastSavedSize {
		return nil, nil
	}
	if info.Size() < s.LastSavedSize {
		// Rewritten by someone else; what we have in memory stays authoritative.
		h.log.Debug().
			Int64("size", info.Size()).
			Int64("last_saved_size", s.LastSavedSize).
			Msg("History file shrank")
		s.LastSavedSize = info.Size()
		return nil, nil
	}

	file, err := os.Open(s.Options.SavePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := file.Seek(s.LastSavedSize, io.SeekStart); err != nil {
		return nil, err
	}

	lines, n, err := readLines(file)
	if err != nil {
		return nil, err
	}
	s.LastSavedSize += n

	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}

// readLines splits r into physical lines, returning the bytes consumed
func readLines(r io.Reader) ([]string, int64, error) {
	reader := bufio.NewReader(r)
	var lines []string
	var n int64
	for {
		line, err := reader.ReadString('\n')
		n += int64(len(line))
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		if err == io.EOF {
			return lines, n, nil
		}
		if err != nil {
			return nil, 0, err
		}
	}
}

// updateHistoryFromFile rebuilds logical entries from physical lines and
// runs each through MaybeAddToHistory
func (h *TextHistory) updateHistoryFromFile(lines []string, fromOtherSession, fromInitialRead bool) {
	var sb strings.Builder
	added := h.state.History.Count()

	add := func(entry string) {
		edits := []EditItem{InsertString{Text: entry, Offset: 0}}
		h.MaybeAddToHistory(entry, edits, 1, fromOtherSession, fromInitialRead)
	}

	for _, line := range lines {
		switch {
		case strings.HasSuffix(line, continuationMarker):
			sb.WriteString(strings.TrimSuffix(line, continuationMarker))
			sb.WriteByte('\n')
		case sb.Len() > 0:
			sb.WriteString(line)
			add(sb.String())
			sb.Reset()
		default:
			add(line)
		}
	}

	h.log.WithFields(map[string]interface{}{
		"lines":              len(lines),
		"count":              h.state.History.Count(),
		"previous_count":     added,
		"from_other_session": fromOtherSession,
	}).Debug().Msg("History merged from file")
}

// encodeEntry escapes logical newlines with the continuation marker
func encodeEntry(line string) string {
	return strings.ReplaceAll(line, "\n", continuationMarker+"\n")
}

// withHistoryFileLock runs action while holding the history file lock.
// It returns false when the lock could not be had in time or action failed;
// file errors are reported, never returned.
func (h *TextHistory) withHistoryFileLock(timeout time.Duration, action func() error) bool {
	lock := h.state.Lock
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		err := lock.Acquire(timeout)
		switch {
		case err == nil:
			return h.runLocked(action)
		case errors.Is(err, filelock.ErrAbandoned):
			// The abandoned lock is ours now. Release it before retrying or
			// every other process keeps timing out.
			h.log.Warn().Int("attempt", attempt).Msg("History lock was abandoned, retrying")
			if relErr := lock.Release(); relErr != nil {
				h.log.Warn().Err(relErr).Msg("Failed to release abandoned history lock")
				return false
			}
		case errors.Is(err, filelock.ErrTimeout):
			h.log.Debug().Dur("timeout", timeout).Msg("History file busy, skipping")
			return false
		default:
			h.log.Warn().Err(err).Msg("Failed to acquire history lock")
			return false
		}
	}
	return false
}

func (h *TextHistory) runLocked(action func() error) bool {
	defer func() {
		if err := h.state.Lock.Release(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to release history lock")
		}
	}()

	if err := action(); err != nil {
		if isFileError(err) {
			h.faults.Report(err)
		} else {
			h.log.WithError(err).Error().Msg("History file operation failed")
		}
		return false
	}
	return true
}
