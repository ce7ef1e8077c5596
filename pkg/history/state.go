package history

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NeverVane/shellhistory/internal/config"
	"github.com/NeverVane/shellhistory/internal/filelock"
	"github.com/NeverVane/shellhistory/internal/logger"
)

// SaveStyle controls when recorded lines reach the history file
type SaveStyle int

const (
	SaveIncrementally SaveStyle = iota
	SaveAtExit
	SaveNothing
)

func (s SaveStyle) String() string {
	switch s {
	case SaveIncrementally:
		return config.SaveStyleIncremental
	case SaveAtExit:
		return config.SaveStyleAtExit
	case SaveNothing:
		return config.SaveStyleNothing
	}
	return "unknown"
}

// ParseSaveStyle maps a config value to a SaveStyle
func ParseSaveStyle(s string) (SaveStyle, bool) {
	switch strings.ToLower(s) {
	case config.SaveStyleIncremental:
		return SaveIncrementally, true
	case config.SaveStyleAtExit:
		return SaveAtExit, true
	case config.SaveStyleNothing:
		return SaveNothing, true
	}
	return SaveIncrementally, false
}

const (
	// DefaultMaximumHistoryCount bounds the in-memory queue
	DefaultMaximumHistoryCount = 4096

	// DefaultLockTimeout bounds the wait for the history file lock
	DefaultLockTimeout = 100 * time.Millisecond

	recentHistoryCapacity = 5
)

// Options are the history settings. They are read, never written, by this package.
type Options struct {
	MaximumHistoryCount int
	NoDuplicates        bool
	SaveStyle           SaveStyle
	SavePath            string
	LockTimeout         time.Duration

	// AddToHistoryHandler overrides DefaultDisposition for typed lines
	AddToHistoryHandler DecisionFunc
}

// DefaultOptions returns options for a history file at savePath
func DefaultOptions(savePath string) *Options {
	return &Options{
		MaximumHistoryCount: DefaultMaximumHistoryCount,
		NoDuplicates:        true,
		SaveStyle:           SaveIncrementally,
		SavePath:            savePath,
		LockTimeout:         DefaultLockTimeout,
	}
}

// OptionsFromConfig builds options from the [history] config section
func OptionsFromConfig(cfg *config.Config) *Options {
	opts := DefaultOptions(cfg.GetSavePath())
	opts.MaximumHistoryCount = cfg.History.MaxCount
	opts.NoDuplicates = cfg.History.NoDuplicates
	opts.LockTimeout = cfg.GetLockTimeout()
	if style, ok := ParseSaveStyle(cfg.History.SaveStyle); ok {
		opts.SaveStyle = style
	}
	return opts
}

// State is the history of one shell session. Every history operation works
// on the State it is given; nothing is kept in package variables.
type State struct {
	History *Queue[*Item]

	// Recent holds the last few typed lines for prediction
	Recent *Queue[string]

	// PreviousItem is the item created for the last accepted line, nil if it was skipped
	PreviousItem *Item

	// 0 <= CurrentHistoryIndex <= History.Count()
	CurrentHistoryIndex int

	// Non-zero while "accept and get next" navigation is in progress
	GetNextHistoryIndex int

	// SavedCurrentLine holds the in-progress line while history is recalled
	SavedCurrentLine *Item

	Options *Options

	// Lock arbitrates history file access between processes
	Lock filelock.Locker

	// LastSavedSize is the history file length already reflected in History
	LastSavedSize int64

	SessionID string

	log *logger.Logger
}

// NewState creates an empty session history. A nil lock selects the named
// file lock for opts.SavePath.
func NewState(opts *Options, lock filelock.Locker) *State {
	if lock == nil {
		lock = filelock.ForPath(opts.SavePath)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}

	sessionID := uuid.NewString()
	s := &State{
		History:          NewQueue[*Item](opts.MaximumHistoryCount),
		Recent:           NewQueue[string](recentHistoryCapacity),
		SavedCurrentLine: &Item{EditGroupStart: -1},
		Options:          opts,
		Lock:             lock,
		SessionID:        sessionID,
		log:              logger.GetLogger().History().WithSessionID(sessionID),
	}
	return s
}

// ClearSavedCurrentLine forgets the line saved before history recall
func (s *State) ClearSavedCurrentLine() {
	s.SavedCurrentLine.Reset()
}

// Clear empties the in-memory history. The history file is untouched.
func (s *State) Clear() {
	s.History.Clear()
	s.Recent.Clear()
	s.PreviousItem = nil
	s.CurrentHistoryIndex = 0
}

// Items returns the recorded items from oldest to newest
func (s *State) Items() []*Item {
	items := make([]*Item, 0, s.History.Count())
	for i := 0; i < s.History.Count(); i++ {
		items = append(items, s.History.At(i))
	}
	return items
}
