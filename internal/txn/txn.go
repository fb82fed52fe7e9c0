// Package txn holds the transaction context the lock manager uses: a
// transaction id, its two-phase locking state and the tuple locks it
// holds, plus an ordered page set and a deleted-page set that a caller
// can use for its own bookkeeping (grounded on original_source/src/include/concurrency/
// transaction.h's equivalent fields, and the teacher's sync.Mutex-first
// style for shared mutable state).
package txn

import (
	"sync"

	"github.com/novadb/novadb/internal/storage"
)

// RID identifies a tuple by the page that holds it and its slot within
// that page.
type RID struct {
	PageID storage.PageID
	Slot   uint32
}

// State is a transaction's position in the two-phase locking state
// machine (spec.md §4.4).
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the unit of locking and latch bookkeeping the lock
// manager and B+tree operations thread through. Txn ids are assigned
// in creation order by Manager and double as the wait-die priority:
// a smaller id is older.
type Transaction struct {
	mu sync.Mutex

	id    int64
	state State

	shared    map[RID]struct{}
	exclusive map[RID]struct{}

	pageSet      []storage.PageID
	deletedPages []storage.PageID
}

func newTransaction(id int64) *Transaction {
	return &Transaction{
		id:        id,
		state:     Growing,
		shared:    make(map[RID]struct{}),
		exclusive: make(map[RID]struct{}),
	}
}

// ID returns the transaction's id.
func (t *Transaction) ID() int64 { return t.id }

// State returns the transaction's current two-phase-locking state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the transaction's state.
func (t *Transaction) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// AddShared records that the transaction holds a shared lock on rid.
func (t *Transaction) AddShared(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shared[rid] = struct{}{}
}

// RemoveShared forgets a shared lock on rid.
func (t *Transaction) RemoveShared(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.shared, rid)
}

// HasShared reports whether the transaction holds a shared lock on rid.
func (t *Transaction) HasShared(rid RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.shared[rid]
	return ok
}

// AddExclusive records that the transaction holds an exclusive lock on
// rid.
func (t *Transaction) AddExclusive(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusive[rid] = struct{}{}
}

// RemoveExclusive forgets an exclusive lock on rid.
func (t *Transaction) RemoveExclusive(rid RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.exclusive, rid)
}

// HasExclusive reports whether the transaction holds an exclusive lock
// on rid.
func (t *Transaction) HasExclusive(rid RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exclusive[rid]
	return ok
}

// PushPage appends id to the operation's latched-page set, tracked
// top-down so a later unwind can release latches in the right order.
func (t *Transaction) PushPage(id storage.PageID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageSet = append(t.pageSet, id)
}

// PopPage removes and returns the most recently pushed page id.
func (t *Transaction) PopPage() (storage.PageID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.pageSet)
	if n == 0 {
		return storage.InvalidPageID, false
	}
	id := t.pageSet[n-1]
	t.pageSet = t.pageSet[:n-1]
	return id, true
}

// PageSet returns a snapshot of the currently latched page ids, in
// push order (root to leaf).
func (t *Transaction) PageSet() []storage.PageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]storage.PageID, len(t.pageSet))
	copy(out, t.pageSet)
	return out
}

// ClearPageSet empties the page set, e.g. once every latch has been
// released.
func (t *Transaction) ClearPageSet() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageSet = t.pageSet[:0]
}

// AddDeletedPage records id in the staged-for-deletion set. It only
// records the id; deallocating the page is left to the caller.
func (t *Transaction) AddDeletedPage(id storage.PageID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deletedPages = append(t.deletedPages, id)
}

// DeletedPages returns the staged-for-deletion page ids.
func (t *Transaction) DeletedPages() []storage.PageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]storage.PageID, len(t.deletedPages))
	copy(out, t.deletedPages)
	return out
}

// ClearDeletedPages empties the staged-for-deletion set, once its
// pages have actually been deallocated.
func (t *Transaction) ClearDeletedPages() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deletedPages = t.deletedPages[:0]
}

// Manager assigns transactions monotonically increasing ids, so a
// smaller id always means an older transaction (the wait-die priority
// lockmgr relies on).
type Manager struct {
	mu     sync.Mutex
	nextID int64
}

// NewManager constructs an empty transaction manager.
func NewManager() *Manager {
	return &Manager{}
}

// Begin starts a new transaction in the Growing state.
func (m *Manager) Begin() *Transaction {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()
	return newTransaction(id)
}
