package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "CH.json")
	require.False(t, Exists(path))

	err := WriteJSON(path, map[string]any{"result": "Zürich <ZH> & co"})
	require.NoError(t, err)
	require.True(t, Exists(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"result\": \"Zürich <ZH> & co\"\n}\n", string(contents))

	err = WriteJSON(path, []int{1, 2})
	require.NoError(t, err)
	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[\n  1,\n  2\n]\n", string(contents))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files should not be left behind")
}

func TestWriteJSONUnencodable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")

	err := WriteJSON(path, map[string]any{"fn": func() {}})
	require.Error(t, err)
	require.False(t, Exists(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
