package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDiskManagerAllocateReadWrite(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(dir, "novadb")
	require.NoError(t, err)
	defer dm.Close()

	id1 := dm.AllocatePage()
	id2 := dm.AllocatePage()
	require.NotEqual(t, id1, id2)

	want := make([]byte, PageSize)
	for i := range want {
		want[i] = byte(i % 251)
	}
	require.NoError(t, dm.WritePage(id1, want))

	got := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(id1, got))
	require.Equal(t, want, got)

	other := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(id2, other))
	for _, b := range other {
		require.Zero(t, b, "unwritten page must read back as zero bytes")
	}
}

func TestFileDiskManagerReusesDeallocatedIDs(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(dir, "novadb")
	require.NoError(t, err)
	defer dm.Close()

	id := dm.AllocatePage()
	dm.DeallocatePage(id)
	reused := dm.AllocatePage()
	require.Equal(t, id, reused)
}

func TestFileDiskManagerPersistsAllocStateAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(dir, "novadb")
	require.NoError(t, err)

	_ = dm.AllocatePage()
	id2 := dm.AllocatePage()
	dm.DeallocatePage(id2)
	require.NoError(t, dm.Close())

	dm2, err := NewFileDiskManager(dir, "novadb")
	require.NoError(t, err)
	defer dm2.Close()

	require.Equal(t, id2, dm2.AllocatePage(), "restart must not reuse a still-live page id before a freed one")
}

func TestFileDiskManagerSpansSegments(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileDiskManager(dir, "novadb")
	require.NoError(t, err)
	defer dm.Close()

	// Force allocation across the segment boundary by setting nextID
	// directly would reach into internals; instead verify the formula
	// novadb relies on is internally consistent for an id beyond one
	// segment.
	id := PageID(segmentPages + 7)
	buf := make([]byte, PageSize)
	buf[0] = 0x42
	require.NoError(t, dm.WritePage(id, buf))

	got := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(id, got))
	require.Equal(t, byte(0x42), got[0])
}
