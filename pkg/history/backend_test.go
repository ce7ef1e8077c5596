package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteHistory_Placeholder(t *testing.T) {
	var b Backend = SQLiteHistory{}
	assert.Equal(t, "ls -la", b.MaybeAddToHistory("ls -la", nil, 0, false, false))
}

func TestProxy(t *testing.T) {
	h := newTestHistory(t, filepath.Join(t.TempDir(), "history.txt"), nil)

	p := NewProxy(h.TextHistory)

	edits := []EditItem{InsertString{Text: "ls"}}
	assert.Equal(t, "ls", p.AddToHistory("ls", edits, 1, false, false))
	require.Equal(t, []string{"ls"}, h.lines())

	p.SetBackend(SQLiteHistory{})
	assert.Equal(t, "pwd", p.AddToHistory("pwd", nil, 0, false, false))
	assert.Equal(t, []string{"ls"}, h.lines())

	p.SetBackend(nil)
	assert.Equal(t, "cd", p.AddToHistory("cd", nil, 0, false, false))
}
