package history

import "time"

// EditItem is one edit that produced a line. The line editor owns the full
// set of edit kinds; this package only creates InsertString.
type EditItem interface {
	Kind() string
}

// InsertString inserts Text at Offset
type InsertString struct {
	Text   string
	Offset int
}

func (InsertString) Kind() string { return "insert" }

// Item is one recorded line
type Item struct {
	// The accepted input with logical newlines preserved
	CommandLine string

	// Edit history that produced the line, so recall restores undo context
	Edits          []EditItem
	UndoEditIndex  int
	EditGroupStart int

	// Saved is true once the line is in the history file or deliberately
	// withheld from it
	Saved bool

	// Sensitive lines are never written to disk
	Sensitive bool

	FromOtherSession bool
	FromHistoryFile  bool

	// StartTime is only set for lines typed in this session
	StartTime time.Time
}

// Reset clears the item back to an empty line with no edit group
func (it *Item) Reset() {
	it.CommandLine = ""
	it.Edits = nil
	it.UndoEditIndex = 0
	it.EditGroupStart = -1
}

