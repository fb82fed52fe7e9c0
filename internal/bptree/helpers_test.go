package bptree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertFromFileThenRemoveFromFile(t *testing.T) {
	tree := newTestTree(t, 4, 4)

	path := filepath.Join(t.TempDir(), "keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("3\n1\n4\n1\n5\n9\n2\n6\n"), 0o644))

	require.NoError(t, InsertFromFile(tree, path))

	for _, key := range []KeyType{3, 1, 4, 5, 9, 2, 6} {
		_, ok, err := tree.GetValue(key)
		require.NoError(t, err)
		require.True(t, ok, "key %d", key)
	}

	removePath := filepath.Join(t.TempDir(), "remove.txt")
	require.NoError(t, os.WriteFile(removePath, []byte("1\n9\n2\n"), 0o644))
	require.NoError(t, RemoveFromFile(tree, removePath))

	for _, key := range []KeyType{1, 9, 2} {
		_, ok, err := tree.GetValue(key)
		require.NoError(t, err)
		require.False(t, ok, "key %d should have been removed", key)
	}
	for _, key := range []KeyType{3, 4, 5, 6} {
		_, ok, err := tree.GetValue(key)
		require.NoError(t, err)
		require.True(t, ok, "key %d should still be present", key)
	}
}

func TestInsertFromFileRejectsMalformedLine(t *testing.T) {
	tree := newTestTree(t, 4, 4)
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\nnot-a-number\n"), 0o644))

	err := InsertFromFile(tree, path)
	require.Error(t, err)
}
