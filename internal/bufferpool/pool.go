// Package bufferpool implements the fixed-capacity buffer pool
// manager: a bounded array of page frames, a page table keyed by page
// id, and a pluggable victim-selection policy, grounded on the
// teacher's internal/bufferpool/pool.go and
// original_source/src/buffer/buffer_pool_manager.cpp.
package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/novadb/novadb/internal/pagetable"
	"github.com/novadb/novadb/internal/storage"
)

// ErrPoolExhausted is returned when every frame is pinned and the
// replacer has no victim to evict.
var ErrPoolExhausted = errors.New("bufferpool: pool exhausted")

// ErrPagePinned is returned by DeletePage when the page still has
// outstanding pins.
var ErrPagePinned = errors.New("bufferpool: page is still pinned")

// Replacer selects a victim frame index among those currently
// unpinned. LRU and Clock (package internal/replacer) both satisfy
// this.
type Replacer interface {
	Insert(frameIdx int)
	Victim() (frameIdx int, ok bool)
	Erase(frameIdx int) bool
	Size() int
}

// LogManager is the narrow slice of a write-ahead log the buffer pool
// depends on: a hook called before writing a dirty victim back to
// disk. internal/wal.Manager implements this; nil disables logging.
type LogManager interface {
	Flush() error
}

func pageIDHash(id storage.PageID) uint64 {
	x := uint64(uint32(id))
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	return x
}

// Pool is the buffer pool manager: poolSize frames, a page table
// mapping page id to frame index, a free list of frames holding no
// page (never used, or emptied by DeletePage), and a replacer for frames that have been used and unpinned. A
// single coarse mutex serializes every public operation, matching the
// reference implementation's single-lock design (spec.md §5); pin
// count and dirty-flag mutation inside a pinned frame happens under
// that frame's own write latch.
type Pool struct {
	mu sync.Mutex

	frames    []*storage.Page
	free      []int
	pageTable *pagetable.Table[storage.PageID, int]
	replacer  Replacer

	disk storage.DiskManager
	log  LogManager
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithReplacer overrides the default LRU replacer.
func WithReplacer(r Replacer) Option {
	return func(p *Pool) { p.replacer = r }
}

// WithLogManager attaches a LogManager whose Flush is called before
// any dirty victim write-back.
func WithLogManager(lm LogManager) Option {
	return func(p *Pool) { p.log = lm }
}

// WithBucketSize overrides the page table's extendible-hash bucket
// capacity (default storage.DefaultBucketSize).
func WithBucketSize(n int) Option {
	return func(p *Pool) { p.pageTable = pagetable.New[storage.PageID, int](n, pageIDHash) }
}

// NewPool constructs a buffer pool with size frames, backed by disk.
func NewPool(size int, disk storage.DiskManager, opts ...Option) *Pool {
	p := &Pool{
		disk: disk,
	}
	p.frames = make([]*storage.Page, size)
	p.free = make([]int, size)
	for i := 0; i < size; i++ {
		p.frames[i] = storage.NewPage()
		p.free[i] = size - 1 - i
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.replacer == nil {
		p.replacer = newDefaultReplacer()
	}
	if p.pageTable == nil {
		p.pageTable = pagetable.New[storage.PageID, int](storage.DefaultBucketSize, pageIDHash)
	}
	return p
}

// victimFrame finds a frame to reuse: one from the free list first, then
// whatever the replacer offers. Callers must hold p.mu.
func (p *Pool) victimFrame() (int, bool) {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return idx, true
	}
	return p.replacer.Victim()
}

// evict prepares frame idx for reuse: if it holds a dirty page,
// writes it back (flushing the log manager first); always removes
// its page table entry. Callers must hold p.mu.
func (p *Pool) evict(idx int) error {
	f := p.frames[idx]
	f.WLatch()
	id := f.ID()
	dirty := f.IsDirty()
	f.WUnlatch()

	if id != storage.InvalidPageID {
		if dirty {
			if p.log != nil {
				if err := p.log.Flush(); err != nil {
					return fmt.Errorf("bufferpool: log flush before victim write-back: %w", err)
				}
			}
			f.RLatch()
			err := p.disk.WritePage(id, f.Data())
			f.RUnlatch()
			if err != nil {
				return fmt.Errorf("bufferpool: write-back page %d: %w", id, err)
			}
			slog.Debug("bufferpool.victim write-back", "pageID", id, "frame", idx)
		}
		p.pageTable.Remove(id)
	}
	return nil
}

// FetchPage pins and returns the page id, fetching it from disk if not
// already resident.
func (p *Pool) FetchPage(id storage.PageID) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable.Find(id); ok {
		f := p.frames[idx]
		f.WLatch()
		if f.PinCount() == 0 {
			p.replacer.Erase(idx)
		}
		f.PinLocked()
		f.WUnlatch()
		return f, nil
	}

	idx, ok := p.victimFrame()
	if !ok {
		return nil, ErrPoolExhausted
	}
	if err := p.evict(idx); err != nil {
		return nil, err
	}

	f := p.frames[idx]
	f.WLatch()
	f.ResetLocked(id)
	if err := p.disk.ReadPage(id, f.Data()); err != nil {
		f.WUnlatch()
		return nil, fmt.Errorf("bufferpool: read page %d: %w", id, err)
	}
	f.PinLocked()
	f.WUnlatch()

	p.pageTable.Insert(id, idx)
	return f, nil
}

// NewPage allocates a fresh page id on disk and pins it in a frame,
// ready to be written.
func (p *Pool) NewPage() (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.victimFrame()
	if !ok {
		return nil, ErrPoolExhausted
	}
	if err := p.evict(idx); err != nil {
		return nil, err
	}

	id := p.disk.AllocatePage()
	f := p.frames[idx]
	f.WLatch()
	f.ResetLocked(id)
	f.PinLocked()
	f.WUnlatch()

	p.pageTable.Insert(id, idx)
	slog.Debug("bufferpool.NewPage", "pageID", id, "frame", idx)
	return f, nil
}

// UnpinPage decrements id's pin count, marking it dirty if isDirty is
// true, and makes the frame evictable once the pin count reaches zero.
// Reports whether id was resident.
func (p *Pool) UnpinPage(id storage.PageID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	f := p.frames[idx]
	f.WLatch()
	if isDirty {
		f.SetDirty(true)
	}
	remaining := f.UnpinLocked()
	f.WUnlatch()

	if remaining <= 0 {
		p.replacer.Insert(idx)
	}
	return true
}

// FlushPage writes id back to disk immediately if resident, regardless
// of pin count, clearing its dirty flag on success. With a LogManager
// attached, the log is flushed first.
func (p *Pool) FlushPage(id storage.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	if p.log != nil {
		if err := p.log.Flush(); err != nil {
			return false
		}
	}
	f := p.frames[idx]
	f.WLatch()
	defer f.WUnlatch()

	if err := p.disk.WritePage(id, f.Data()); err != nil {
		return false
	}
	f.SetDirty(false)
	return true
}

// DeletePage removes id from the pool and deallocates it on disk. It
// refuses (returning an error) if the page is still pinned.
func (p *Pool) DeletePage(id storage.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(id)
	if !ok {
		p.disk.DeallocatePage(id)
		return nil
	}

	f := p.frames[idx]
	f.WLatch()
	pinned := f.PinCount() > 0
	f.WUnlatch()
	if pinned {
		return ErrPagePinned
	}

	p.replacer.Erase(idx)
	p.pageTable.Remove(id)
	p.disk.DeallocatePage(id)

	f.WLatch()
	f.ResetLocked(storage.InvalidPageID)
	f.WUnlatch()
	p.free = append(p.free, idx)
	return nil
}

// Size returns the pool's frame capacity.
func (p *Pool) Size() int { return len(p.frames) }
