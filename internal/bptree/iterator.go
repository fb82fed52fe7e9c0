package bptree

import (
	"github.com/novadb/novadb/internal/storage"
	"github.com/novadb/novadb/internal/txn"
)

// Iterator walks a range of the tree's entries in key order, holding a
// read latch on at most one leaf at a time and crossing leaf
// boundaries via NextPageID. SPEC_FULL.md's supplemented iterator
// Close() lets a caller abandon a range scan early without leaking the
// current leaf's pin; Next implicitly closes once it runs out of
// entries.
type Iterator struct {
	tree *Tree
	leaf *storage.Page
	idx  int
	done bool
}

// Begin starts an iterator at the first entry whose key is >= key. If
// the tree is empty, the returned iterator is immediately done.
func (t *Tree) Begin(key KeyType) (*Iterator, error) {
	leaf, err := t.findLeafRead(key)
	if err != nil {
		if err == ErrEmptyTree {
			return &Iterator{tree: t, done: true}, nil
		}
		return nil, err
	}
	lp := AsLeaf(leaf)
	idx, _ := lp.Find(key, t.cmp)
	it := &Iterator{tree: t, leaf: leaf, idx: idx}
	it.skipPastLeafEnd()
	return it, nil
}

// BeginFirst starts an iterator at the smallest key in the tree.
func (t *Tree) BeginFirst() (*Iterator, error) {
	rootID, err := t.getRootPageID()
	if err != nil {
		return nil, err
	}
	if rootID == storage.InvalidPageID {
		return &Iterator{tree: t, done: true}, nil
	}

	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return nil, err
	}
	cur.RLatch()
	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.ValueAt(0)
		child, err := t.bp.FetchPage(childID)
		if err != nil {
			curID := cur.ID()
			cur.RUnlatch()
			t.bp.UnpinPage(curID, false)
			return nil, err
		}
		child.RLatch()
		curID := cur.ID()
		cur.RUnlatch()
		t.bp.UnpinPage(curID, false)
		cur = child
	}
	it := &Iterator{tree: t, leaf: cur, idx: 0}
	it.skipPastLeafEnd()
	return it, nil
}

// skipPastLeafEnd advances to the next leaf (releasing the current
// one) whenever idx has walked off the end of the current leaf,
// repeating across any number of empty trailing leaves. Sets done once
// there's no next leaf.
func (it *Iterator) skipPastLeafEnd() {
	for !it.done {
		lp := AsLeaf(it.leaf)
		if it.idx < lp.Size() {
			return
		}
		next := lp.NextPageID()
		leafID := it.leaf.ID()
		it.leaf.RUnlatch()
		it.tree.bp.UnpinPage(leafID, false)
		if next == storage.InvalidPageID {
			it.leaf = nil
			it.done = true
			return
		}
		np, err := it.tree.bp.FetchPage(next)
		if err != nil {
			it.leaf = nil
			it.done = true
			return
		}
		np.RLatch()
		it.leaf = np
		it.idx = 0
	}
}

// IsEnd reports whether the iterator has exhausted its range.
func (it *Iterator) IsEnd() bool { return it.done }

// Key and Value return the entry the iterator currently points at.
// Callers must check IsEnd first.
func (it *Iterator) Key() KeyType {
	return AsLeaf(it.leaf).KeyAt(it.idx)
}

func (it *Iterator) Value() txn.RID {
	return AsLeaf(it.leaf).ValueAt(it.idx)
}

// Next advances to the following entry.
func (it *Iterator) Next() {
	if it.done {
		return
	}
	it.idx++
	it.skipPastLeafEnd()
}

// Close releases the iterator's held leaf latch and pin, if any. Safe
// to call more than once, and safe to skip if the iterator already
// reached its end (Next/skipPastLeafEnd release it automatically).
func (it *Iterator) Close() {
	if it.leaf == nil {
		return
	}
	leafID := it.leaf.ID()
	it.leaf.RUnlatch()
	it.tree.bp.UnpinPage(leafID, false)
	it.leaf = nil
	it.done = true
}
