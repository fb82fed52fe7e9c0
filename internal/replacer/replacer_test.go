package replacer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUVictimOrder(t *testing.T) {
	l := NewLRU()
	for _, id := range []int{1, 2, 3, 4, 5} {
		l.Insert(id)
	}
	require.True(t, l.Erase(3))
	require.False(t, l.Erase(3), "second erase of the same id finds nothing")
	require.Equal(t, 4, l.Size())

	for _, want := range []int{1, 2, 4, 5} {
		got, ok := l.Victim()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := l.Victim()
	require.False(t, ok)
}

func TestLRUReInsertMovesToFront(t *testing.T) {
	l := NewLRU()
	l.Insert(1)
	l.Insert(2)
	l.Insert(1) // re-touch 1: now more recent than 2
	got, ok := l.Victim()
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestClockRequiresTwoPassesToEvictReferenced(t *testing.T) {
	c := NewClock(3)
	c.Insert(0)
	c.Insert(1)
	c.Insert(2)

	// Touch 0 again right before asking for a victim. Every Insert sets
	// the ref bit, so all three frames are referenced: the first sweep
	// only clears their bits, and the second pass evicts 0, where the
	// hand started.
	c.Insert(0)

	first, ok := c.Victim()
	require.True(t, ok)
	require.Equal(t, 0, first, "a referenced frame is evicted only on the hand's second pass")
}

func TestClockEraseRemovesCandidate(t *testing.T) {
	c := NewClock(2)
	c.Insert(0)
	c.Insert(1)
	require.True(t, c.Erase(0))
	require.Equal(t, 1, c.Size())
	got, ok := c.Victim()
	require.True(t, ok)
	require.Equal(t, 1, got)
}
