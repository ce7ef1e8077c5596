package history

// Backend records accepted lines. It is the only entry point the rest of the
// shell uses to add history.
type Backend interface {
	// MaybeAddToHistory records line with the edits that produced it and
	// returns the line, possibly normalized. fromOtherSession marks lines
	// written by another process; fromInitialRead marks lines replayed from
	// the history file at startup.
	MaybeAddToHistory(line string, edits []EditItem, undoEditIndex int, fromOtherSession, fromInitialRead bool) string
}

var (
	_ Backend = (*TextHistory)(nil)
	_ Backend = SQLiteHistory{}
)

// SQLiteHistory is a PLACEHOLDER for a structured-storage backend. It records
// nothing and returns the line unchanged. Do not select it for real sessions.
type SQLiteHistory struct{}

func (SQLiteHistory) MaybeAddToHistory(line string, _ []EditItem, _ int, _, _ bool) string {
	return line
}

// Proxy forwards history requests to the selected backend
type Proxy struct {
	backend Backend
}

// NewProxy creates a proxy for backend
func NewProxy(backend Backend) *Proxy {
	return &Proxy{backend: backend}
}

// SetBackend switches the backend used for subsequent lines
func (p *Proxy) SetBackend(backend Backend) {
	p.backend = backend
}

// AddToHistory records line through the selected backend. Without a backend
// the line is returned unrecorded.
func (p *Proxy) AddToHistory(line string, edits []EditItem, undoEditIndex int, fromOtherSession, fromInitialRead bool) string {
	if p.backend == nil {
		return line
	}
	return p.backend.MaybeAddToHistory(line, edits, undoEditIndex, fromOtherSession, fromInitialRead)
}
