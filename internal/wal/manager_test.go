package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novadb/novadb/internal/storage"
)

func TestAppendFlushRecoverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novadb.wal")

	m, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, m.AppendPageImage(storage.PageID(1), []byte("before-image-1")))
	require.NoError(t, m.AppendPageImage(storage.PageID(2), []byte("before-image-2")))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	records, err := Recover(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, storage.PageID(1), records[0].PageID)
	require.Equal(t, "before-image-1", string(records[0].Data))
	require.Equal(t, storage.PageID(2), records[1].PageID)
	require.Equal(t, "before-image-2", string(records[1].Data))
}

func TestRecoverOfMissingFileIsEmptyNotError(t *testing.T) {
	records, err := Recover(filepath.Join(t.TempDir(), "missing.wal"))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRecoverDropsTornTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novadb.wal")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.AppendPageImage(storage.PageID(1), []byte("complete")))
	require.NoError(t, m.AppendPageImage(storage.PageID(2), []byte("also-complete")))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	full, err := os.ReadFile(path)
	require.NoError(t, err)

	// Drop the last 6 bytes, cutting into the second record's 13-byte
	// payload, simulating a crash partway through writing that record.
	torn := full[:len(full)-6]
	require.NoError(t, os.WriteFile(path, torn, 0o644))

	records, err := Recover(path)
	require.NoError(t, err)
	require.Len(t, records, 1, "the torn trailing record is dropped, the complete one survives")
	require.Equal(t, storage.PageID(1), records[0].PageID)
	require.Equal(t, "complete", string(records[0].Data))
}
