package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/novadb/novadb/internal/bx"
)

// segmentPages caps how many PageSize pages live in one underlying OS
// file, mirroring the teacher's segments.go (a single growing file is
// awkward to truncate/compact; bounded segments are not).
const segmentPages = 1 << 14 // 16384 pages/segment (64MiB at PageSize=4096)

// FileDiskManager is the on-disk DiskManager: pages are stored in a
// sequence of fixed-size segment files under dir, named "<base>.<n>",
// adapted from the teacher's StorageManager/LocalFileSet. Page id
// allocation is a monotonic counter plus a free list, persisted
// alongside the segments via an atomically-replaced state file so a
// restart doesn't reuse a live page id.
type FileDiskManager struct {
	mu      sync.Mutex
	dir     string
	base    string
	nextID  PageID
	freeIDs []PageID
	open    map[int32]*os.File
}

// NewFileDiskManager opens (or creates) a disk manager rooted at dir,
// using base as the segment file name prefix.
func NewFileDiskManager(dir, base string) (*FileDiskManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	d := &FileDiskManager{
		dir:    dir,
		base:   base,
		nextID: HeaderPageID + 1,
		open:   make(map[int32]*os.File),
	}
	if err := d.loadAllocState(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDiskManager) allocStatePath() string {
	return filepath.Join(d.dir, d.base+".alloc")
}

func (d *FileDiskManager) segmentPath(seg int32) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s.%d", d.base, seg))
}

// loadAllocState restores nextID/freeIDs from the alloc-state file, if
// one exists. A missing file means a fresh disk manager.
func (d *FileDiskManager) loadAllocState() error {
	raw, err := os.ReadFile(d.allocStatePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read alloc state: %w", err)
	}
	if len(raw) < 8 {
		return fmt.Errorf("storage: truncated alloc state")
	}
	d.nextID = PageID(int32(bx.U32(raw[0:4])))
	n := bx.U32(raw[4:8])
	want := 8 + int(n)*4
	if len(raw) < want {
		return fmt.Errorf("storage: truncated alloc state free list")
	}
	d.freeIDs = make([]PageID, n)
	for i := range d.freeIDs {
		off := 8 + i*4
		d.freeIDs[i] = PageID(int32(bx.U32(raw[off : off+4])))
	}
	return nil
}

// saveAllocState persists nextID/freeIDs with a temp-file-then-rename
// so a crash mid-write never leaves a corrupt state file, the same
// durability trick the teacher's internal/btree/meta.go uses for its
// index metadata file.
func (d *FileDiskManager) saveAllocState() error {
	buf := make([]byte, 8+len(d.freeIDs)*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(d.nextID)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(d.freeIDs)))
	for i, id := range d.freeIDs {
		off := 8 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(int32(id)))
	}

	tmp := d.allocStatePath() + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("storage: write alloc state: %w", err)
	}
	if err := os.Rename(tmp, d.allocStatePath()); err != nil {
		return fmt.Errorf("storage: rename alloc state: %w", err)
	}
	return nil
}

// AllocatePage hands out a fresh page id, preferring a previously
// deallocated one.
func (d *FileDiskManager) AllocatePage() PageID {
	d.mu.Lock()
	defer d.mu.Unlock()

	var id PageID
	if n := len(d.freeIDs); n > 0 {
		id = d.freeIDs[n-1]
		d.freeIDs = d.freeIDs[:n-1]
	} else {
		id = d.nextID
		d.nextID++
	}
	_ = d.saveAllocState()
	return id
}

// DeallocatePage returns a page id to the free list for reuse. It does
// not reclaim the page's disk bytes; the slot is simply overwritten by
// whatever page reuses the id.
func (d *FileDiskManager) DeallocatePage(id PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freeIDs = append(d.freeIDs, id)
	_ = d.saveAllocState()
}

func (d *FileDiskManager) locate(id PageID) (seg int32, off int64) {
	seg = int32(id) / segmentPages
	off = int64(int32(id)%segmentPages) * PageSize
	return seg, off
}

func (d *FileDiskManager) segmentFile(seg int32) (*os.File, error) {
	if f, ok := d.open[seg]; ok {
		return f, nil
	}
	f, err := os.OpenFile(d.segmentPath(seg), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open segment %d: %w", seg, err)
	}
	d.open[seg] = f
	return f, nil
}

// ReadPage reads PageSize bytes for id into buf, which must be at
// least PageSize long. Reading a page that was never written returns
// zero bytes, matching a sparse file's semantics.
func (d *FileDiskManager) ReadPage(id PageID, buf []byte) error {
	if len(buf) < PageSize {
		return fmt.Errorf("storage: ReadPage buffer too small (%d < %d)", len(buf), PageSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	seg, off := d.locate(id)
	f, err := d.segmentFile(seg)
	if err != nil {
		return err
	}
	n, err := f.ReadAt(buf[:PageSize], off)
	if n == 0 {
		// sparse hole: leave buf zeroed, not an error.
		for i := range buf[:PageSize] {
			buf[i] = 0
		}
		return nil
	}
	return err
}

// WritePage writes PageSize bytes from buf for id, growing the segment
// file as needed.
func (d *FileDiskManager) WritePage(id PageID, buf []byte) error {
	if len(buf) < PageSize {
		return fmt.Errorf("storage: WritePage buffer too small (%d < %d)", len(buf), PageSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	seg, off := d.locate(id)
	f, err := d.segmentFile(seg)
	if err != nil {
		return err
	}
	_, err = f.WriteAt(buf[:PageSize], off)
	return err
}

// Close flushes and closes every open segment file.
func (d *FileDiskManager) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for seg, f := range d.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("storage: close segment %d: %w", seg, err)
		}
	}
	d.open = make(map[int32]*os.File)
	return firstErr
}
