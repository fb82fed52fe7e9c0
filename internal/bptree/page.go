// Package bptree implements a concurrent B+tree index with latch
// coupling (crabbing), grounded on original_source/src/index/
// b_plus_tree.cpp, page/b_plus_tree_internal_page.cpp, and the
// teacher's internal/btree package's encode/decode style (entry.go,
// leaf.go, internal.go) and slog usage.
package bptree

import (
	"github.com/novadb/novadb/internal/bx"
	"github.com/novadb/novadb/internal/storage"
	"github.com/novadb/novadb/internal/txn"
)

// KeyType is the index key type. A single fixed-width integer key
// keeps the page layout flat and simple, matching the teacher's
// internal/btree (KeyType = int64) rather than introducing generic
// variable-length keys, which spec.md's scope doesn't call for.
type KeyType = int64

// Comparator orders two keys: negative if a < b, zero if equal,
// positive if a > b. The tree never assumes KeyType's natural
// ordering, so callers can plug in a different comparator.
type Comparator func(a, b KeyType) int

// DefaultComparator orders keys numerically.
func DefaultComparator(a, b KeyType) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type pageType uint8

const (
	leafPageType     pageType = 1
	internalPageType pageType = 2
)

// Common header, shared by leaf and internal pages:
//
//	off 0:  page_type  (uint8)
//	off 2:  size        (uint16)
//	off 4:  max_size    (uint16)
//	off 6:  page_id     (int32)
//	off 10: parent_page_id (int32)
//
// Leaf pages add next_page_id (int32) at offset 14, pushing their
// entries to start at 18; internal page entries start right after the
// common header, at 14.
const (
	offPageType      = 0
	offSize          = 2
	offMaxSize       = 4
	offPageID        = 6
	offParentPageID  = 10
	commonHeaderSize = 14
	offNextPageID    = 14

	leafHeaderSize     = 18
	internalHeaderSize = commonHeaderSize

	// leaf entry: key(8) + RID{PageID(4), Slot(4)}.
	leafEntrySize = 8 + 4 + 4
	// internal entry: key(8) + child page id(4). Slot 0's key is
	// unused; only its child matters (spec.md §4.5).
	internalEntrySize = 8 + 4
)

// LeafMaxSize returns the default leaf fan-out for a PageSize-byte
// page, per spec.md §6's floor((PAGE_SIZE-header)/slot_size)-1 formula.
func LeafMaxSize() int {
	return (storage.PageSize-leafHeaderSize)/leafEntrySize - 1
}

// InternalMaxSize returns the default internal fan-out for a
// PageSize-byte page, by the same formula.
func InternalMaxSize() int {
	return (storage.PageSize-internalHeaderSize)/internalEntrySize - 1
}

type nodeHeader struct{ data []byte }

func (h nodeHeader) kind() pageType       { return pageType(h.data[offPageType]) }
func (h nodeHeader) setKind(t pageType)   { h.data[offPageType] = byte(t) }
func (h nodeHeader) Size() int            { return int(bx.U16At(h.data, offSize)) }
func (h nodeHeader) SetSize(n int)        { bx.PutU16At(h.data, offSize, uint16(n)) }
func (h nodeHeader) MaxSize() int         { return int(bx.U16At(h.data, offMaxSize)) }
func (h nodeHeader) setMaxSize(n int)     { bx.PutU16At(h.data, offMaxSize, uint16(n)) }
func (h nodeHeader) PageID() storage.PageID {
	return storage.PageID(int32(bx.U32At(h.data, offPageID)))
}
func (h nodeHeader) setPageID(id storage.PageID) { bx.PutU32At(h.data, offPageID, uint32(int32(id))) }
func (h nodeHeader) ParentPageID() storage.PageID {
	return storage.PageID(int32(bx.U32At(h.data, offParentPageID)))
}
func (h nodeHeader) SetParentPageID(id storage.PageID) {
	bx.PutU32At(h.data, offParentPageID, uint32(int32(id)))
}

// IsLeaf reports whether the page at p's current bytes holds a leaf
// node. Callers use this before choosing AsLeaf or AsInternal.
func IsLeaf(p *storage.Page) bool {
	return pageType(p.Data()[offPageType]) == leafPageType
}

// setParentPageID writes the parent page id field shared by both leaf
// and internal headers, without needing to know which kind p holds.
func setParentPageID(p *storage.Page, parent storage.PageID) {
	bx.PutU32At(p.Data(), offParentPageID, uint32(int32(parent)))
}

// --- Leaf page -------------------------------------------------------

// LeafPage is a typed view over a *storage.Page holding a leaf node's
// bytes: a header plus a flat, key-sorted array of (key, RID) entries.
type LeafPage struct {
	Page *storage.Page
	h    nodeHeader
}

// AsLeaf wraps p as a LeafPage view. p's bytes must already hold leaf
// data (after Init or a prior fetch).
func AsLeaf(p *storage.Page) *LeafPage {
	return &LeafPage{Page: p, h: nodeHeader{p.Data()}}
}

// Init formats p's bytes as a fresh, empty leaf node.
func (n *LeafPage) Init(id, parent storage.PageID, maxSize int) {
	n.h.setKind(leafPageType)
	n.h.SetSize(0)
	n.h.setMaxSize(maxSize)
	n.h.setPageID(id)
	n.h.SetParentPageID(parent)
	n.SetNextPageID(storage.InvalidPageID)
}

func (n *LeafPage) Size() int                        { return n.h.Size() }
func (n *LeafPage) MaxSize() int                      { return n.h.MaxSize() }
func (n *LeafPage) PageID() storage.PageID            { return n.h.PageID() }
func (n *LeafPage) ParentPageID() storage.PageID      { return n.h.ParentPageID() }
func (n *LeafPage) SetParentPageID(id storage.PageID) { n.h.SetParentPageID(id) }

func (n *LeafPage) NextPageID() storage.PageID {
	return storage.PageID(int32(bx.U32At(n.h.data, offNextPageID)))
}
func (n *LeafPage) SetNextPageID(id storage.PageID) {
	bx.PutU32At(n.h.data, offNextPageID, uint32(int32(id)))
}

func (n *LeafPage) entryOffset(i int) int { return leafHeaderSize + i*leafEntrySize }

func (n *LeafPage) KeyAt(i int) KeyType {
	return int64(bx.U64At(n.h.data, n.entryOffset(i)))
}

func (n *LeafPage) ValueAt(i int) txn.RID {
	off := n.entryOffset(i)
	pid := storage.PageID(int32(bx.U32At(n.h.data, off+8)))
	slot := bx.U32At(n.h.data, off+12)
	return txn.RID{PageID: pid, Slot: slot}
}

func (n *LeafPage) setEntryAt(i int, key KeyType, v txn.RID) {
	off := n.entryOffset(i)
	bx.PutU64At(n.h.data, off, uint64(key))
	bx.PutU32At(n.h.data, off+8, uint32(int32(v.PageID)))
	bx.PutU32At(n.h.data, off+12, v.Slot)
}

// Find returns the index of key if present, or the index it would be
// inserted at to keep entries sorted.
func (n *LeafPage) Find(key KeyType, cmp Comparator) (idx int, found bool) {
	lo, hi := 0, n.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n.Size() && cmp(n.KeyAt(lo), key) == 0 {
		return lo, true
	}
	return lo, false
}

// InsertAt shifts entries right and inserts (key, v) at idx.
func (n *LeafPage) InsertAt(idx int, key KeyType, v txn.RID) {
	sz := n.Size()
	for i := sz; i > idx; i-- {
		n.setEntryAt(i, n.KeyAt(i-1), n.ValueAt(i-1))
	}
	n.setEntryAt(idx, key, v)
	n.h.SetSize(sz + 1)
}

// RemoveAt shifts entries left over idx, dropping it.
func (n *LeafPage) RemoveAt(idx int) {
	sz := n.Size()
	for i := idx; i < sz-1; i++ {
		n.setEntryAt(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.h.SetSize(sz - 1)
}

// Insert adds (key, v) in sorted order. Reports false if key is
// already present (duplicate keys are rejected, spec.md §4.5).
func (n *LeafPage) Insert(key KeyType, v txn.RID, cmp Comparator) bool {
	idx, found := n.Find(key, cmp)
	if found {
		return false
	}
	n.InsertAt(idx, key, v)
	return true
}

// Lookup returns key's RID if present.
func (n *LeafPage) Lookup(key KeyType, cmp Comparator) (txn.RID, bool) {
	idx, found := n.Find(key, cmp)
	if !found {
		return txn.RID{}, false
	}
	return n.ValueAt(idx), true
}

// RemoveKey deletes key if present, reporting whether it was found.
func (n *LeafPage) RemoveKey(key KeyType, cmp Comparator) bool {
	idx, found := n.Find(key, cmp)
	if !found {
		return false
	}
	n.RemoveAt(idx)
	return true
}

// MoveHalfTo splits n by moving its upper half of entries to dst (a
// freshly Init'd leaf), and relinks the leaf chain so dst sits between
// n and n's old next leaf.
func (n *LeafPage) MoveHalfTo(dst *LeafPage) {
	sz := n.Size()
	mid := sz / 2
	for i := mid; i < sz; i++ {
		dst.setEntryAt(i-mid, n.KeyAt(i), n.ValueAt(i))
	}
	dst.h.SetSize(sz - mid)
	n.h.SetSize(mid)
	dst.SetNextPageID(n.NextPageID())
	n.SetNextPageID(dst.PageID())
}

// MoveAllTo folds all of n's entries into dst (coalesce: n is the
// right sibling being absorbed into dst, the left sibling), relinking
// the leaf chain past n.
func (n *LeafPage) MoveAllTo(dst *LeafPage) {
	sz, dsz := n.Size(), dst.Size()
	for i := 0; i < sz; i++ {
		dst.setEntryAt(dsz+i, n.KeyAt(i), n.ValueAt(i))
	}
	dst.h.SetSize(dsz + sz)
	dst.SetNextPageID(n.NextPageID())
	n.h.SetSize(0)
}

// MoveFirstToEndOf moves n's first entry to the end of dst. n is the
// right sibling of dst in a redistribute where dst is underfull and
// sits left of n.
func (n *LeafPage) MoveFirstToEndOf(dst *LeafPage) {
	key, val := n.KeyAt(0), n.ValueAt(0)
	n.RemoveAt(0)
	dst.setEntryAt(dst.Size(), key, val)
	dst.h.SetSize(dst.Size() + 1)
}

// MoveLastToFrontOf moves n's last entry to the front of dst. n is the
// left sibling of dst in a redistribute where dst is underfull and
// sits right of n.
func (n *LeafPage) MoveLastToFrontOf(dst *LeafPage) {
	sz := n.Size()
	key, val := n.KeyAt(sz-1), n.ValueAt(sz-1)
	n.RemoveAt(sz - 1)
	dst.InsertAt(0, key, val)
}

// --- Internal page ----------------------------------------------------

// InternalPage is a typed view over a *storage.Page holding an
// internal node's bytes: a header plus a flat array of (key, child)
// entries, where slot 0's key is unused.
type InternalPage struct {
	Page *storage.Page
	h    nodeHeader
}

// AsInternal wraps p as an InternalPage view.
func AsInternal(p *storage.Page) *InternalPage {
	return &InternalPage{Page: p, h: nodeHeader{p.Data()}}
}

// Init formats p's bytes as a fresh, empty internal node.
func (n *InternalPage) Init(id, parent storage.PageID, maxSize int) {
	n.h.setKind(internalPageType)
	n.h.SetSize(0)
	n.h.setMaxSize(maxSize)
	n.h.setPageID(id)
	n.h.SetParentPageID(parent)
}

func (n *InternalPage) Size() int                        { return n.h.Size() }
func (n *InternalPage) SetSize(sz int)                    { n.h.SetSize(sz) }
func (n *InternalPage) MaxSize() int                      { return n.h.MaxSize() }
func (n *InternalPage) PageID() storage.PageID            { return n.h.PageID() }
func (n *InternalPage) ParentPageID() storage.PageID      { return n.h.ParentPageID() }
func (n *InternalPage) SetParentPageID(id storage.PageID) { n.h.SetParentPageID(id) }

func (n *InternalPage) entryOffset(i int) int { return internalHeaderSize + i*internalEntrySize }

func (n *InternalPage) KeyAt(i int) KeyType {
	return int64(bx.U64At(n.h.data, n.entryOffset(i)))
}
func (n *InternalPage) SetKeyAt(i int, key KeyType) {
	bx.PutU64At(n.h.data, n.entryOffset(i), uint64(key))
}
func (n *InternalPage) ValueAt(i int) storage.PageID {
	return storage.PageID(int32(bx.U32At(n.h.data, n.entryOffset(i)+8)))
}
func (n *InternalPage) SetValueAt(i int, v storage.PageID) {
	bx.PutU32At(n.h.data, n.entryOffset(i)+8, uint32(int32(v)))
}

// ValueIndex returns the slot holding child v, or -1.
func (n *InternalPage) ValueIndex(v storage.PageID) int {
	for i := 0; i < n.Size(); i++ {
		if n.ValueAt(i) == v {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id to descend into for key, via binary
// search over the real separator keys at [1, size).
func (n *InternalPage) Lookup(key KeyType, cmp Comparator) storage.PageID {
	start, end := 1, n.Size()-1
	for start <= end {
		mid := start + (end-start)/2
		if cmp(n.KeyAt(mid), key) <= 0 {
			start = mid + 1
		} else {
			end = mid - 1
		}
	}
	return n.ValueAt(start - 1)
}

// PopulateNewRoot formats n (already Init'd) as a fresh two-child root
// over left and right, separated by key.
func (n *InternalPage) PopulateNewRoot(left storage.PageID, key KeyType, right storage.PageID) {
	n.SetValueAt(0, left)
	n.SetKeyAt(1, key)
	n.SetValueAt(1, right)
	n.SetSize(2)
}

// InsertNodeAfter inserts (key, newChild) immediately after the entry
// for old, returning the new size.
func (n *InternalPage) InsertNodeAfter(old storage.PageID, key KeyType, newChild storage.PageID) int {
	idx := n.ValueIndex(old) + 1
	sz := n.Size()
	for i := sz; i > idx; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	n.SetKeyAt(idx, key)
	n.SetValueAt(idx, newChild)
	n.SetSize(sz + 1)
	return sz + 1
}

// RemoveAt shifts entries left over idx, dropping it.
func (n *InternalPage) RemoveAt(idx int) {
	sz := n.Size()
	for i := idx; i < sz-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	n.SetSize(sz - 1)
}

// RemoveByValue removes the entry for child v, if present.
func (n *InternalPage) RemoveByValue(v storage.PageID) {
	if idx := n.ValueIndex(v); idx >= 0 {
		n.RemoveAt(idx)
	}
}

// RemoveAndReturnOnlyChild empties a single-entry root and returns its
// one remaining child, for AdjustRoot to promote as the new root.
func (n *InternalPage) RemoveAndReturnOnlyChild() storage.PageID {
	v := n.ValueAt(0)
	n.SetSize(0)
	return v
}

// MoveHalfTo splits n by moving its upper half of entries to dst (a
// freshly Init'd internal page). Reparenting the moved children is
// the tree's job, since InternalPage has no buffer pool access.
func (n *InternalPage) MoveHalfTo(dst *InternalPage) {
	sz := n.Size()
	mid := sz / 2
	for i := mid; i < sz; i++ {
		dst.SetKeyAt(i-mid, n.KeyAt(i))
		dst.SetValueAt(i-mid, n.ValueAt(i))
	}
	dst.SetSize(sz - mid)
	n.SetSize(mid)
}

// MoveAllTo folds all of n's entries into the end of dst (coalesce).
// separatorKey is the key that preceded n in the parent; the reference
// implementation leaves n's unused slot-0 key untouched when merging,
// which would silently corrupt the separator for n's first child once
// it's folded into dst — fixed here by writing separatorKey into that
// slot before the copy. Returns the moved children, for the tree to
// reparent onto dst.
func (n *InternalPage) MoveAllTo(dst *InternalPage, separatorKey KeyType) []storage.PageID {
	n.SetKeyAt(0, separatorKey)
	sz, dsz := n.Size(), dst.Size()
	moved := make([]storage.PageID, sz)
	for i := 0; i < sz; i++ {
		dst.SetKeyAt(dsz+i, n.KeyAt(i))
		dst.SetValueAt(dsz+i, n.ValueAt(i))
		moved[i] = n.ValueAt(i)
	}
	dst.SetSize(dsz + sz)
	n.SetSize(0)
	return moved
}

// MoveFirstToEndOf removes n's first (key, child) entry and appends it
// to the end of dst (n is dst's right sibling in a redistribute).
// Returns the moved child (for the tree to reparent onto dst) and n's
// new leading key (the tree must write this into the parent's
// separator slot for n).
func (n *InternalPage) MoveFirstToEndOf(dst *InternalPage) (child storage.PageID, newLeadingKey KeyType) {
	key, ch := n.KeyAt(0), n.ValueAt(0)
	sz := n.Size()
	for i := 1; i < sz; i++ {
		n.SetKeyAt(i-1, n.KeyAt(i))
		n.SetValueAt(i-1, n.ValueAt(i))
	}
	n.SetSize(sz - 1)

	dst.SetKeyAt(dst.Size(), key)
	dst.SetValueAt(dst.Size(), ch)
	dst.SetSize(dst.Size() + 1)
	return ch, n.KeyAt(0)
}

// MoveLastToFrontOf removes n's last (key, child) entry and prepends
// it to dst (n is dst's left sibling in a redistribute). Returns the
// moved child (for the tree to reparent onto dst) and the moved key
// (the tree must write this into the parent's separator slot for dst).
func (n *InternalPage) MoveLastToFrontOf(dst *InternalPage) (child storage.PageID, movedKey KeyType) {
	sz := n.Size()
	key, ch := n.KeyAt(sz-1), n.ValueAt(sz-1)
	n.SetSize(sz - 1)

	for i := dst.Size(); i > 0; i-- {
		dst.SetKeyAt(i, dst.KeyAt(i-1))
		dst.SetValueAt(i, dst.ValueAt(i-1))
	}
	dst.SetKeyAt(0, key)
	dst.SetValueAt(0, ch)
	dst.SetSize(dst.Size() + 1)
	return ch, key
}
