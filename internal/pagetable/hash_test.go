package pagetable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func identityHash(k int) uint64 { return uint64(uint32(k)) }

func TestTableSplitsOnOverflowAndKeepsEntriesRetrievable(t *testing.T) {
	tbl := New[int, string](2, identityHash)

	tbl.Insert(1, "a")
	tbl.Insert(2, "b")
	tbl.Insert(3, "c")

	require.Equal(t, 1, tbl.GlobalDepth())
	require.Equal(t, 2, tbl.NumBuckets())

	tbl.Insert(4, "d")

	for key, want := range map[int]string{1: "a", 2: "b", 3: "c", 4: "d"} {
		got, ok := tbl.Find(key)
		require.True(t, ok, "key %d must be retrievable", key)
		require.Equal(t, want, got)
	}
	require.GreaterOrEqual(t, tbl.GlobalDepth(), 1)
	require.GreaterOrEqual(t, tbl.NumBuckets(), 2)

	checkDirectoryInvariant(t, tbl)
}

func TestTableRemoveAndReinsert(t *testing.T) {
	tbl := New[int, string](4, identityHash)
	tbl.Insert(10, "x")
	require.True(t, tbl.Remove(10))
	require.False(t, tbl.Remove(10))

	_, ok := tbl.Find(10)
	require.False(t, ok)

	tbl.Insert(10, "y")
	got, ok := tbl.Find(10)
	require.True(t, ok)
	require.Equal(t, "y", got)
}

func TestTableManyInsertsRemainConsistent(t *testing.T) {
	tbl := New[int, int](3, identityHash)
	for i := 0; i < 200; i++ {
		tbl.Insert(i, i*i)
	}
	for i := 0; i < 200; i++ {
		got, ok := tbl.Find(i)
		require.True(t, ok)
		require.Equal(t, i*i, got)
	}
	checkDirectoryInvariant(t, tbl)
}

// checkDirectoryInvariant asserts spec.md §4.2's directory invariant:
// for every bucket b = dir[i] with local depth l, every j with
// j ≡ i (mod 2^l) also has dir[j] == b.
func checkDirectoryInvariant[V any](t *testing.T, tbl *Table[int, V]) {
	t.Helper()
	tbl.mu.Lock()
	defer tbl.mu.Unlock()

	for i, b := range tbl.dir {
		b.mu.Lock()
		mod := 1 << uint(b.local)
		for j := range tbl.dir {
			if j%mod == i%mod {
				require.Same(t, b, tbl.dir[j], "directory invariant violated at slots %d,%d", i, j)
			}
		}
		b.mu.Unlock()
	}
}
