package history

import (
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/NeverVane/shellhistory/internal/logger"
)

// TextHistory is the Backend that keeps State in sync with a plain text
// history file shared by every shell process.
type TextHistory struct {
	state  *State
	faults *Reporter
	log    *logger.Logger
}

// NewTextHistory creates the text backend for state. A nil reporter writes
// unstyled reports to stderr.
func NewTextHistory(state *State, faults *Reporter) *TextHistory {
	if faults == nil {
		faults = NewReporter(os.Stderr, state.Options.SavePath, lipgloss.NewStyle())
	}
	return &TextHistory{
		state:  state,
		faults: faults,
		log:    logger.GetLogger().History().WithSessionID(state.SessionID),
	}
}

// State returns the session history the backend records into
func (h *TextHistory) State() *State {
	return h.state
}

// MaybeAddToHistory records line if the policy keeps it and, when saving
// incrementally, appends it to the history file. Lines replayed from the
// file (fromOtherSession or fromInitialRead) are never written back.
func (h *TextHistory) MaybeAddToHistory(line string, edits []EditItem, undoEditIndex int, fromOtherSession, fromInitialRead bool) string {
	h.addToHistory(line, edits, undoEditIndex, fromOtherSession, fromInitialRead)
	return line
}

// addToHistory returns the item created for line, or nil if it was skipped.
// PreviousItem cannot stand in for it: a write merges foreign lines after it.
func (h *TextHistory) addToHistory(line string, edits []EditItem, undoEditIndex int, fromOtherSession, fromInitialRead bool) *Item {
	s := h.state
	fromHistoryFile := fromOtherSession || fromInitialRead

	var item *Item
	if disposition := s.disposition(line, fromHistoryFile); disposition != SkipAdding {
		item = &Item{
			CommandLine:      line,
			Edits:            edits,
			UndoEditIndex:    undoEditIndex,
			EditGroupStart:   -1,
			Saved:            fromHistoryFile,
			FromOtherSession: fromOtherSession,
			FromHistoryFile:  fromInitialRead,
		}

		if !fromHistoryFile {
			s.Recent.Enqueue(line)
			item.Sensitive = disposition == MemoryOnly
			item.StartTime = time.Now().UTC()
		}

		s.PreviousItem = item
		s.History.Enqueue(item)
		s.CurrentHistoryIndex = s.History.Count()

		if s.Options.SaveStyle == SaveIncrementally && !fromHistoryFile {
			h.incrementalHistoryWrite()
		}
	} else {
		s.PreviousItem = nil
	}

	// After "accept and get next" we are still inside history and the
	// saved line may be recalled.
	if s.GetNextHistoryIndex == 0 {
		s.ClearSavedCurrentLine()
	}
	return item
}

// Load reads the whole history file into State at session start
func (h *TextHistory) Load() bool {
	if h.state.Options.SaveStyle == SaveNothing {
		return false
	}

	start := time.Now()
	ok := h.withHistoryFileLock(historyLoadTimeout, func() error {
		lines, err := h.readHistoryFileIncrementally()
		if err != nil {
			return err
		}
		h.updateHistoryFromFile(lines, false, true)
		return nil
	})

	h.log.Performance("load", time.Since(start), map[string]interface{}{
		"entries": h.state.History.Count(),
		"ok":      ok,
	})
	return ok
}

// Sync merges lines other processes appended since the last read or write
func (h *TextHistory) Sync() bool {
	if h.state.Options.SaveStyle == SaveNothing {
		return false
	}

	return h.withHistoryFileLock(h.state.Options.LockTimeout, func() error {
		lines, err := h.readHistoryFileIncrementally()
		if err != nil {
			return err
		}
		h.updateHistoryFromFile(lines, true, false)
		return nil
	})
}

// Rewrite replaces the history file with the in-memory history. Sensitive
// items are still withheld.
func (h *TextHistory) Rewrite() bool {
	if h.state.Options.SaveStyle == SaveNothing {
		return false
	}
	return h.writeHistoryItems(h.state.Items(), true)
}

// Close writes unsaved items when saving at exit
func (h *TextHistory) Close() bool {
	if h.state.Options.SaveStyle != SaveAtExit {
		return true
	}
	return h.incrementalHistoryWrite()
}
