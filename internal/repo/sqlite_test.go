package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteRepo {
	t.Helper()
	r, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRepo_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) TodoRepository {
		return newTestSQLite(t)
	})
}

func TestSQLiteRepo_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "todos.db")

	r, err := NewSQLiteRepo(path)
	require.NoError(t, err)
	_, err = r.Create(t.Context(), "alice", "persisted")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r, err = NewSQLiteRepo(path)
	require.NoError(t, err)
	defer r.Close()

	todos, err := r.List(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "persisted", todos[0].Text)

	var version string
	require.NoError(t, r.db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&version))
	assert.Equal(t, "2", version)
}

func TestSQLiteRepo_EmptySuggestionsStayEmpty(t *testing.T) {
	r := newTestSQLite(t)
	todo, err := r.Create(t.Context(), "alice", "x")
	require.NoError(t, err)

	updated, err := r.SetSuggestions(t.Context(), todo.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, updated.Suggestions)
	assert.Empty(t, updated.Suggestions)
}
