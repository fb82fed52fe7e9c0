package bptree

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/novadb/novadb/internal/bufferpool"
	"github.com/novadb/novadb/internal/storage"
	"github.com/novadb/novadb/internal/txn"
)

// Tree is a concurrent B+tree index over (KeyType, txn.RID) pairs,
// stored as LeafPage/InternalPage views over pages fetched from a
// buffer pool. Traversal and mutation use latch coupling (crabbing):
// readers and the optimistic write pass hold at most a parent and
// child latch at once; a pessimistic write pass holds write latches
// down the whole path, releasing ancestors early once a node is known
// safe from any split/merge propagating up into it. Grounded on
// original_source/src/index/b_plus_tree.cpp's Insert/Remove/GetValue.
type Tree struct {
	name string
	bp   *bufferpool.Pool
	cmp  Comparator

	leafMax     int
	internalMax int

	// structMu serializes the whole pessimistic write pass: the rare
	// fallback taken only when the optimistic single-leaf-latch pass
	// finds the target leaf already full or underfull, or finds the tree
	// empty on insert. Two concurrent
	// pessimistic passes could otherwise deadlock fetching each other's
	// siblings out of path order, so the simpler and still-correct
	// choice is to never run two at once. Point lookups and the
	// optimistic insert/remove pass (the overwhelming majority of
	// operations on a tree that isn't perpetually at capacity) never
	// take this lock.
	structMu sync.Mutex
}

// Option configures a Tree at construction time.
type Option func(*Tree)

// WithComparator overrides DefaultComparator.
func WithComparator(cmp Comparator) Option {
	return func(t *Tree) { t.cmp = cmp }
}

// WithLeafMaxSize overrides the computed default leaf fan-out, mostly
// for tests that want small pages to exercise splits without needing
// thousands of inserts.
func WithLeafMaxSize(n int) Option {
	return func(t *Tree) { t.leafMax = n }
}

// WithInternalMaxSize overrides the computed default internal fan-out.
func WithInternalMaxSize(n int) Option {
	return func(t *Tree) { t.internalMax = n }
}

// New opens (or creates) the named index backed by bp. Index roots are
// tracked in the header page's name -> root-page-id directory, so
// several named trees can share one buffer pool.
func New(name string, bp *bufferpool.Pool, opts ...Option) (*Tree, error) {
	t := &Tree{
		name:        name,
		bp:          bp,
		cmp:         DefaultComparator,
		leafMax:     LeafMaxSize(),
		internalMax: InternalMaxSize(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.ensureHeaderRecord(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) ensureHeaderRecord() error {
	hp, err := t.bp.FetchPage(storage.HeaderPageID)
	if err != nil {
		return err
	}
	hp.WLatch()
	_, ok := storage.HeaderGetRoot(hp, t.name)
	var insErr error
	if !ok {
		insErr = storage.HeaderInsertRecord(hp, t.name, storage.InvalidPageID)
	}
	hp.WUnlatch()
	t.bp.UnpinPage(storage.HeaderPageID, !ok && insErr == nil)
	return insErr
}

func (t *Tree) getRootPageID() (storage.PageID, error) {
	hp, err := t.bp.FetchPage(storage.HeaderPageID)
	if err != nil {
		return storage.InvalidPageID, err
	}
	hp.RLatch()
	id, _ := storage.HeaderGetRoot(hp, t.name)
	hp.RUnlatch()
	t.bp.UnpinPage(storage.HeaderPageID, false)
	return id, nil
}

func (t *Tree) setRootPageID(id storage.PageID) error {
	hp, err := t.bp.FetchPage(storage.HeaderPageID)
	if err != nil {
		return err
	}
	hp.WLatch()
	err = storage.HeaderUpdateRecord(hp, t.name, id)
	hp.WUnlatch()
	t.bp.UnpinPage(storage.HeaderPageID, err == nil)
	return err
}

// IsEmpty reports whether the tree has no entries at all.
func (t *Tree) IsEmpty() (bool, error) {
	id, err := t.getRootPageID()
	if err != nil {
		return false, err
	}
	return id == storage.InvalidPageID, nil
}

func markDirty(p *storage.Page) { p.SetDirty(true) }

// releaseWritePath unlatches and unpins every page in path, in order.
// It never deletes a page; callers that merged a page away handle its
// unpin/delete themselves before calling this on the remainder.
func (t *Tree) releaseWritePath(path []*storage.Page) {
	for _, p := range path {
		id := p.ID()
		p.WUnlatch()
		t.bp.UnpinPage(id, false)
	}
}

// reparentChild updates childID's parent pointer, fetching it fresh
// through the buffer pool. Works for either a leaf or an internal
// child since the parent pointer field is in the common header.
func (t *Tree) reparentChild(childID, newParent storage.PageID) error {
	child, err := t.bp.FetchPage(childID)
	if err != nil {
		return err
	}
	child.WLatch()
	setParentPageID(child, newParent)
	markDirty(child)
	child.WUnlatch()
	t.bp.UnpinPage(childID, true)
	return nil
}

// --- Point lookup -----------------------------------------------------

// findLeafRead descends from the root to key's leaf using read-latch
// coupling: at most a parent and its child are ever held at once. The
// returned page is pinned and read-latched; the caller must RUnlatch
// and UnpinPage it.
func (t *Tree) findLeafRead(key KeyType) (*storage.Page, error) {
	rootID, err := t.getRootPageID()
	if err != nil {
		return nil, err
	}
	if rootID == storage.InvalidPageID {
		return nil, ErrEmptyTree
	}

	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return nil, err
	}
	cur.RLatch()
	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.Lookup(key, t.cmp)
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
	return cur, nil
}

// GetValue looks up key, reporting whether it is present.
func (t *Tree) GetValue(key KeyType) (txn.RID, bool, error) {
	leaf, err := t.findLeafRead(key)
	if err != nil {
		if errors.Is(err, ErrEmptyTree) {
			return txn.RID{}, false, nil
		}
		return txn.RID{}, false, err
	}
	lp := AsLeaf(leaf)
	rid, ok := lp.Lookup(key, t.cmp)
	leaf.RUnlatch()
	t.bp.UnpinPage(lp.PageID(), false)
	return rid, ok, nil
}

// --- Insert -------------------------------------------------------------

// Insert adds (key, value). It reports false, without error, if key is
// already present.
func (t *Tree) Insert(key KeyType, value txn.RID) (bool, error) {
	ok, err := t.optimisticInsert(key, value)
	if err == nil {
		return ok, nil
	}
	if !errors.Is(err, errRetryPessimistic) {
		return false, err
	}
	return t.pessimisticInsert(key, value)
}

// optimisticInsert assumes the target leaf has room and only ever
// write-latches that one leaf, falling back to errRetryPessimistic
// whenever that assumption turns out false (or the tree is empty and
// a new root must be created).
func (t *Tree) optimisticInsert(key KeyType, value txn.RID) (bool, error) {
	rootID, err := t.getRootPageID()
	if err != nil {
		return false, err
	}
	if rootID == storage.InvalidPageID {
		return false, errRetryPessimistic
	}

	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return false, err
	}
	cur.RLatch()
	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.Lookup(key, t.cmp)
		child, err := t.bp.FetchPage(childID)
		if err != nil {
			curID := cur.ID()
			cur.RUnlatch()
			t.bp.UnpinPage(curID, false)
			return false, err
		}
		child.RLatch()
		curID := cur.ID()
		cur.RUnlatch()
		t.bp.UnpinPage(curID, false)
		cur = child
	}

	leafID := cur.ID()
	cur.RUnlatch()
	cur.WLatch()
	lp := AsLeaf(cur)
	if lp.Size() >= lp.MaxSize() {
		cur.WUnlatch()
		t.bp.UnpinPage(leafID, false)
		return false, errRetryPessimistic
	}
	inserted := lp.Insert(key, value, t.cmp)
	cur.WUnlatch()
	t.bp.UnpinPage(leafID, inserted)
	return inserted, nil
}

func (t *Tree) pessimisticInsert(key KeyType, value txn.RID) (bool, error) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	rootID, err := t.getRootPageID()
	if err != nil {
		return false, err
	}
	if rootID == storage.InvalidPageID {
		return t.startNewTree(key, value)
	}

	path, err := t.latchPathForInsert(rootID, key)
	if err != nil {
		return false, err
	}

	leafPage := path[len(path)-1]
	lp := AsLeaf(leafPage)
	if !lp.Insert(key, value, t.cmp) {
		t.releaseWritePath(path)
		return false, nil
	}
	markDirty(leafPage)

	if lp.Size() <= lp.MaxSize() {
		t.releaseWritePath(path)
		return true, nil
	}
	return true, t.splitAndPropagate(path)
}

func (t *Tree) startNewTree(key KeyType, value txn.RID) (bool, error) {
	leafPage, err := t.bp.NewPage()
	if err != nil {
		return false, err
	}
	leafPage.WLatch()
	lp := AsLeaf(leafPage)
	lp.Init(leafPage.ID(), storage.InvalidPageID, t.leafMax)
	lp.Insert(key, value, t.cmp)
	markDirty(leafPage)
	leafPage.WUnlatch()

	id := leafPage.ID()
	if err := t.setRootPageID(id); err != nil {
		t.bp.UnpinPage(id, true)
		return false, err
	}
	t.bp.UnpinPage(id, true)
	slog.Debug("bptree.startNewTree", "index", t.name, "root", id)
	return true, nil
}

// latchPathForInsert write-latches root-to-leaf, releasing every
// ancestor of a node as soon as that node is known safe: a node with
// room for one more entry can never be forced to split by anything
// that happens in its subtree, so nothing above it can change.
func (t *Tree) latchPathForInsert(rootID storage.PageID, key KeyType) ([]*storage.Page, error) {
	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return nil, err
	}
	cur.WLatch()
	path := []*storage.Page{cur}

	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.Lookup(key, t.cmp)
		child, err := t.bp.FetchPage(childID)
		if err != nil {
			t.releaseWritePath(path)
			return nil, err
		}
		child.WLatch()
		path = append(path, child)

		if h := (nodeHeader{child.Data()}); h.Size() < h.MaxSize() {
			t.releaseWritePath(path[:len(path)-1])
			path = path[len(path)-1:]
		}
		cur = child
	}
	return path, nil
}

// splitAndPropagate handles a leaf (or, recursively, an ancestor) that
// has grown one entry past its max size: split it in two and insert
// the new sibling into the parent, repeating up the path as long as
// the parent itself overflows. path is fully consumed (every page
// unlatched and unpinned) by the time this returns.
func (t *Tree) splitAndPropagate(path []*storage.Page) error {
	node := path[len(path)-1]
	rest := path[:len(path)-1]

	for {
		var newPage *storage.Page
		var upKey KeyType
		var err error
		if IsLeaf(node) {
			newPage, upKey, err = t.splitLeaf(node)
		} else {
			newPage, upKey, err = t.splitInternal(node)
		}
		if err != nil {
			t.releaseWritePath(append(rest, node))
			return err
		}
		slog.Debug("bptree.split", "index", t.name, "page", node.ID(), "sibling", newPage.ID(), "upKey", upKey)

		if len(rest) == 0 {
			err := t.createNewRoot(node, upKey, newPage)
			newPage.WUnlatch()
			t.bp.UnpinPage(newPage.ID(), true)
			t.releaseWritePath([]*storage.Page{node})
			return err
		}

		parent := rest[len(rest)-1]
		pin := AsInternal(parent)
		pin.InsertNodeAfter(node.ID(), upKey, newPage.ID())
		markDirty(parent)

		newPage.WUnlatch()
		t.bp.UnpinPage(newPage.ID(), true)
		// Release node before its parent can split: splitInternal
		// reparents the children it moves, and node may be one of them.
		t.releaseWritePath([]*storage.Page{node})

		if pin.Size() <= pin.MaxSize() {
			t.releaseWritePath(rest)
			return nil
		}
		node = parent
		rest = rest[:len(rest)-1]
	}
}

// splitLeaf moves node's upper half into a fresh leaf sibling, still
// write-latched and pinned on return, along with the key the caller
// must insert into the parent.
func (t *Tree) splitLeaf(node *storage.Page) (*storage.Page, KeyType, error) {
	lp := AsLeaf(node)
	newPage, err := t.bp.NewPage()
	if err != nil {
		return nil, 0, fmt.Errorf("bptree: allocate leaf split sibling: %w", err)
	}
	newPage.WLatch()
	nl := AsLeaf(newPage)
	nl.Init(newPage.ID(), lp.ParentPageID(), lp.MaxSize())
	lp.MoveHalfTo(nl)
	markDirty(node)
	markDirty(newPage)
	return newPage, nl.KeyAt(0), nil
}

// splitInternal mirrors splitLeaf for an internal node, reparenting
// every child that moved to the new sibling.
func (t *Tree) splitInternal(node *storage.Page) (*storage.Page, KeyType, error) {
	ip := AsInternal(node)
	newPage, err := t.bp.NewPage()
	if err != nil {
		return nil, 0, fmt.Errorf("bptree: allocate internal split sibling: %w", err)
	}
	newPage.WLatch()
	ni := AsInternal(newPage)
	ni.Init(newPage.ID(), ip.ParentPageID(), ip.MaxSize())
	ip.MoveHalfTo(ni)
	markDirty(node)
	markDirty(newPage)

	for i := 0; i < ni.Size(); i++ {
		if err := t.reparentChild(ni.ValueAt(i), newPage.ID()); err != nil {
			newPage.WUnlatch()
			t.bp.UnpinPage(newPage.ID(), true)
			return nil, 0, err
		}
	}
	return newPage, ni.KeyAt(0), nil
}

// createNewRoot builds a fresh two-child root over left and right
// (both already write-latched and pinned by the caller) and persists
// it as the tree's root.
func (t *Tree) createNewRoot(left *storage.Page, key KeyType, right *storage.Page) error {
	newRoot, err := t.bp.NewPage()
	if err != nil {
		return fmt.Errorf("bptree: allocate new root: %w", err)
	}
	newRoot.WLatch()
	nr := AsInternal(newRoot)
	nr.Init(newRoot.ID(), storage.InvalidPageID, t.internalMax)
	nr.PopulateNewRoot(left.ID(), key, right.ID())
	markDirty(newRoot)
	rootID := newRoot.ID()
	newRoot.WUnlatch()
	t.bp.UnpinPage(rootID, true)

	setParentPageID(left, rootID)
	setParentPageID(right, rootID)
	markDirty(left)
	markDirty(right)

	return t.setRootPageID(rootID)
}

// --- Remove -------------------------------------------------------------

// Remove deletes key, reporting whether it was present.
func (t *Tree) Remove(key KeyType) (bool, error) {
	ok, err := t.optimisticRemove(key)
	if err == nil {
		return ok, nil
	}
	if !errors.Is(err, errRetryPessimistic) {
		return false, err
	}
	return t.pessimisticRemove(key)
}

// optimisticRemove assumes the target leaf can lose one entry without
// underflowing (or is the root, which has no minimum), write-latching
// only that leaf. Falls back to errRetryPessimistic otherwise.
func (t *Tree) optimisticRemove(key KeyType) (bool, error) {
	rootID, err := t.getRootPageID()
	if err != nil {
		return false, err
	}
	if rootID == storage.InvalidPageID {
		return false, nil
	}

	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return false, err
	}
	cur.RLatch()
	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.Lookup(key, t.cmp)
		child, err := t.bp.FetchPage(childID)
		if err != nil {
			curID := cur.ID()
			cur.RUnlatch()
			t.bp.UnpinPage(curID, false)
			return false, err
		}
		child.RLatch()
		curID := cur.ID()
		cur.RUnlatch()
		t.bp.UnpinPage(curID, false)
		cur = child
	}

	leafID := cur.ID()
	isRoot := leafID == rootID
	cur.RUnlatch()
	cur.WLatch()
	lp := AsLeaf(cur)
	minSize := lp.MaxSize() / 2
	// A root leaf has no minimum occupancy, except that emptying it
	// entirely requires clearing root_page_id via adjustRootIfNeeded,
	// which only the pessimistic path (with structMu held) performs.
	underflows := lp.Size()-1 < minSize
	if isRoot {
		underflows = lp.Size()-1 == 0
	}
	if underflows {
		cur.WUnlatch()
		t.bp.UnpinPage(leafID, false)
		return false, errRetryPessimistic
	}
	removed := lp.RemoveKey(key, t.cmp)
	cur.WUnlatch()
	t.bp.UnpinPage(leafID, removed)
	return removed, nil
}

func (t *Tree) pessimisticRemove(key KeyType) (bool, error) {
	t.structMu.Lock()
	defer t.structMu.Unlock()

	rootID, err := t.getRootPageID()
	if err != nil {
		return false, err
	}
	if rootID == storage.InvalidPageID {
		return false, nil
	}

	path, err := t.latchPathForRemove(rootID, key)
	if err != nil {
		return false, err
	}

	leafPage := path[len(path)-1]
	lp := AsLeaf(leafPage)
	if !lp.RemoveKey(key, t.cmp) {
		t.releaseWritePath(path)
		return false, nil
	}
	markDirty(leafPage)

	return true, t.coalesceOrRedistributePropagate(path)
}

// latchPathForRemove write-latches root-to-leaf. Once a node is known
// safe, the ancestors between it and the root are released: a node
// that would still meet its minimum occupancy even after losing one
// entry (the worst a coalesce one level down can do to it) stops any
// coalesce from propagating above it. The root is never released early
// since it alone needs the AdjustRoot check once the leaf's removal is
// applied, so path[0] is always the root.
func (t *Tree) latchPathForRemove(rootID storage.PageID, key KeyType) ([]*storage.Page, error) {
	cur, err := t.bp.FetchPage(rootID)
	if err != nil {
		return nil, err
	}
	cur.WLatch()
	path := []*storage.Page{cur}

	for !IsLeaf(cur) {
		in := AsInternal(cur)
		childID := in.Lookup(key, t.cmp)
		child, err := t.bp.FetchPage(childID)
		if err != nil {
			t.releaseWritePath(path)
			return nil, err
		}
		child.WLatch()
		path = append(path, child)

		h := nodeHeader{child.Data()}
		if len(path) > 2 && h.Size()-1 >= h.MaxSize()/2 {
			t.releaseWritePath(path[1 : len(path)-1])
			path = append(path[:1], child)
		}
		cur = child
	}
	return path, nil
}

func nodeUnderfull(node *storage.Page) bool {
	if IsLeaf(node) {
		lp := AsLeaf(node)
		return lp.Size() < lp.MaxSize()/2
	}
	ip := AsInternal(node)
	return ip.Size() < ip.MaxSize()/2
}

func fits(left, right *storage.Page) bool {
	if IsLeaf(left) {
		l, r := AsLeaf(left), AsLeaf(right)
		return l.Size()+r.Size() <= l.MaxSize()
	}
	l, r := AsInternal(left), AsInternal(right)
	return l.Size()+r.Size() <= l.MaxSize()
}

// mergeRightIntoLeft folds right's entries into left (left absorbs
// right; right becomes empty and is deleted by the caller).
func (t *Tree) mergeRightIntoLeft(left, right *storage.Page, parent *InternalPage, rightIdx int) error {
	if IsLeaf(left) {
		AsLeaf(right).MoveAllTo(AsLeaf(left))
		return nil
	}
	separatorKey := parent.KeyAt(rightIdx)
	moved := AsInternal(right).MoveAllTo(AsInternal(left), separatorKey)
	for _, childID := range moved {
		if err := t.reparentChild(childID, left.ID()); err != nil {
			return err
		}
	}
	return nil
}

// redistribute moves exactly one entry across the node/sibling
// boundary and fixes up the parent's separator key for whichever side
// received a new leading entry.
func (t *Tree) redistribute(node, sibling *storage.Page, parent *InternalPage, idx, siblingIdx int) error {
	if IsLeaf(node) {
		nl, sl := AsLeaf(node), AsLeaf(sibling)
		if siblingIdx < idx {
			sl.MoveLastToFrontOf(nl)
			parent.SetKeyAt(idx, nl.KeyAt(0))
		} else {
			sl.MoveFirstToEndOf(nl)
			parent.SetKeyAt(siblingIdx, sl.KeyAt(0))
		}
		return nil
	}

	ni, si := AsInternal(node), AsInternal(sibling)
	if siblingIdx < idx {
		child, movedKey := si.MoveLastToFrontOf(ni)
		parent.SetKeyAt(idx, movedKey)
		return t.reparentChild(child, node.ID())
	}
	child, newLeadingKey := si.MoveFirstToEndOf(ni)
	parent.SetKeyAt(siblingIdx, newLeadingKey)
	return t.reparentChild(child, node.ID())
}

// coalesceOrRedistributePropagate walks path bottom-up from the leaf
// that just lost an entry, coalescing or redistributing at each
// underfull level, stopping as soon as a level is found not underfull
// (redistribute always stops propagation; coalesce may not). It
// assumes full ownership of releasing every page in path exactly once.
func (t *Tree) coalesceOrRedistributePropagate(path []*storage.Page) error {
	i := len(path) - 1
	for {
		node := path[i]

		if i == 0 {
			deleteOldRoot, err := t.adjustRootIfNeeded(node)
			node.WUnlatch()
			t.bp.UnpinPage(node.ID(), true)
			if err != nil {
				return err
			}
			if deleteOldRoot {
				return t.bp.DeletePage(node.ID())
			}
			return nil
		}

		if !nodeUnderfull(node) {
			t.releaseWritePath(path[:i+1])
			return nil
		}

		parent := path[i-1]
		pin := AsInternal(parent)
		idx := pin.ValueIndex(node.ID())

		siblingIdx := idx - 1
		if idx == 0 {
			siblingIdx = 1
		}
		siblingID := pin.ValueAt(siblingIdx)

		sibling, err := t.bp.FetchPage(siblingID)
		if err != nil {
			node.WUnlatch()
			t.bp.UnpinPage(node.ID(), true)
			t.releaseWritePath(path[:i])
			return err
		}
		sibling.WLatch()

		leftPage, rightPage, rightIdx := node, sibling, siblingIdx
		if siblingIdx < idx {
			leftPage, rightPage, rightIdx = sibling, node, idx
		}

		if fits(leftPage, rightPage) {
			if err := t.mergeRightIntoLeft(leftPage, rightPage, pin, rightIdx); err != nil {
				sibling.WUnlatch()
				t.bp.UnpinPage(siblingID, false)
				node.WUnlatch()
				t.bp.UnpinPage(node.ID(), false)
				t.releaseWritePath(path[:i])
				return err
			}
			pin.RemoveAt(rightIdx)
			markDirty(parent)
			slog.Debug("bptree.coalesce", "index", t.name, "survivor", leftPage.ID(), "absorbed", rightPage.ID())

			node.WUnlatch()
			t.bp.UnpinPage(node.ID(), true)
			sibling.WUnlatch()
			t.bp.UnpinPage(siblingID, true)
			if err := t.bp.DeletePage(rightPage.ID()); err != nil {
				t.releaseWritePath(path[:i])
				return err
			}
			i--
			continue
		}

		if err := t.redistribute(node, sibling, pin, idx, siblingIdx); err != nil {
			sibling.WUnlatch()
			t.bp.UnpinPage(siblingID, false)
			t.releaseWritePath(path[:i+1])
			return err
		}
		markDirty(parent)
		slog.Debug("bptree.redistribute", "index", t.name, "page", node.ID(), "sibling", siblingID)
		sibling.WUnlatch()
		t.bp.UnpinPage(siblingID, true)
		t.releaseWritePath(path[:i+1])
		return nil
	}
}

// adjustRootIfNeeded handles the two special root cases after a
// removal: a leaf root emptied by the removal is torn down, clearing
// root_page_id; an internal root left with a single child is
// collapsed, promoting that child as the new root. Reports whether
// node (the old root) must now be deallocated by the caller, once its
// own pin is dropped.
func (t *Tree) adjustRootIfNeeded(node *storage.Page) (deleteOldRoot bool, err error) {
	if IsLeaf(node) {
		lp := AsLeaf(node)
		if lp.Size() > 0 {
			return false, nil
		}
		if err := t.setRootPageID(storage.InvalidPageID); err != nil {
			return false, err
		}
		return true, nil
	}
	ip := AsInternal(node)
	if ip.Size() > 1 {
		return false, nil
	}
	if ip.Size() == 0 {
		return false, t.setRootPageID(storage.InvalidPageID)
	}

	onlyChild := ip.RemoveAndReturnOnlyChild()
	if err := t.setRootPageID(onlyChild); err != nil {
		return false, err
	}
	if err := t.reparentChild(onlyChild, storage.InvalidPageID); err != nil {
		return false, err
	}
	return true, nil
}
